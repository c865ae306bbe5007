// Package config provides configuration parsing for shipsite projects.
//
// The configuration is stored in shipsite.json at the project root. The file
// is optional: without it, the defaults reproduce the classic setup of
// minifying src/ into dist/ and uploading ./dist with environment credentials.
//
// # Configuration File Structure
//
//	{
//	  "build": {
//	    "source": "src",
//	    "output": "dist",
//	    "srcDir": "/",
//	    "destDir": "/",
//	    "css": {"enabled": true},
//	    "html": {"enabled": true},
//	    "gzip": {"enabled": false, "extensions": ["js", "css", "png", "jpg"]}
//	  },
//	  "deploy": {
//	    "src": "./dist",
//	    "loadEnv": true,
//	    "verbose": true,
//	    "bucket": "my-site"
//	  },
//	  "serve": {"port": 4200}
//	}
//
// Credentials are never stored in shipsite.json. They come from the process
// environment, optionally seeded from a .env file (see LoadEnv).
//
// # Usage
//
//	cfg, err := config.LoadFromWorkingDir()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Output:", cfg.OutputPath())
package config
