// Package s3 fetches images stored in Amazon S3.
//
// Addresses take the form s3://bucket/key. Register the downloader on a
// downloader.Mux under Scheme:
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	mux := downloader.NewMux()
//	mux.Handle(s3.Scheme, s3.New(awss3.NewFromConfig(cfg)))
package s3
