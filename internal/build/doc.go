// Package build runs the asset build of a shipsite project.
//
// The build reads the source directory into memory, passes it through an
// ordered pipeline and replaces the output directory with the result:
//
//	src/ -> clean-css -> htmlmin -> [gzip] -> pick-files -> dist/
//
// The gzip stage is only part of the pipeline when build.gzip.enabled is set.
//
// # Usage
//
//	builder := build.New(cfg, build.Options{})
//	result, err := builder.Build(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Built %d files in %s\n", result.Files, result.Duration)
//
// Given unchanged input the output directory is byte-identical between runs.
package build
