// Package uploader bulk-uploads a list of items in fixed-size batches through a
// caller-supplied upload function.
//
// Each batch is admitted under a concurrency cap and a minimum spacing between
// admissions, so request-rate quotas of the remote API are respected. A failed
// batch is recorded and reported; it never aborts the run or other batches.
//
// A minimal run:
//
//	rep, err := uploader.Run(ctx, contacts, func(ctx context.Context, b []Contact) (uploader.UploadResult, error) {
//		ids, err := crm.CreateContacts(ctx, b)
//		return uploader.UploadResult{IDs: ids}, err
//	},
//		uploader.WithBatchSize(50),
//		uploader.WithRateLimit(5, 200*time.Millisecond),
//		uploader.WithLogFile("upload-errors.log"),
//	)
//
// Run only returns an error for invalid configuration. Batch failures are
// visible through the OnError callback, the error log and the returned Report.
package uploader
