// Package storage keeps files under string keys on local disk or in
// S3-compatible object storage.
//
// Both backends implement [Storage]:
//
//	local, err := storage.NewLocal("/var/lib/certy/retained")
//	s3store, err := storage.New(storage.Config{Bucket: "certs", AccessKey: ak, SecretKey: sk})
//
//	info, err := store.Put(ctx, f, size,
//	    storage.WithPrefix(taskID),
//	    storage.WithKey("certificate_jane_doe_1.pdf"),
//	)
//
// Keys are slash-separated. Every segment is sanitized, so a key can never
// escape the local root or address another bucket prefix.
//
// # Validation
//
// Uploaded files are checked by content, not by extension alone:
//
//	err := storage.ValidateFile(fh, storage.DetectMIME(fh),
//	    storage.NotEmpty(),
//	    storage.MaxSize(20<<20),
//	    storage.AllowedExtensions(".csv", ".xlsx", ".xls"),
//	)
//
// A failing rule yields a *FileValidationError carrying a stable Code.
package storage
