// Package deploy uploads a built site to an S3-compatible bucket.
//
// Every regular file below the source directory becomes one object whose key
// is the file's slash-separated path, optionally under a prefix. Objects whose
// ETag already matches the local MD5 are skipped. Gzip output is uploaded with
// Content-Encoding: gzip: compressed siblings (name.css.gz) take the content
// type of the inner file, and files compressed in place keep their own.
//
// # Usage
//
//	client, err := deploy.NewS3Client(ctx, region, endpoint)
//	d := deploy.New(deploy.Options{Src: "./dist", Bucket: "my-site"}, client)
//	result, err := d.Deploy(ctx)
package deploy
