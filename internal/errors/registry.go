package errors

type template struct {
	Category Category
	Message  string
	Detail   string
}

// registry holds every code New accepts. Codes are grouped by range:
// E12x config, E14x CLI, E20x build stages, E22x deploy, E24x serve.
var registry = map[string]template{
	"E120": {
		Category: CategoryConfig,
		Message:  "Invalid shipsite.json",
		Detail:   "The shipsite.json configuration file is malformed.",
	},
	"E121": {
		Category: CategoryConfig,
		Message:  "Environment configuration failed",
		Detail:   "The .env file or the AWS configuration could not be read.",
	},
	"E122": {
		Category: CategoryConfig,
		Message:  "Invalid port number",
		Detail:   "The configured preview server port must be between 0 and 65535.",
	},
	"E123": {
		Category: CategoryConfig,
		Message:  "Invalid build option",
		Detail:   "A build or deploy option in shipsite.json has a value outside its allowed range.",
	},

	"E140": {
		Category: CategoryCLI,
		Message:  "Config file already exists",
		Detail:   "A shipsite.json file already exists in this directory.",
	},
	"E142": {
		Category: CategoryCLI,
		Message:  "Build failed",
		Detail:   "The asset pipeline could not write the output directory.",
	},
	"E143": {
		Category: CategoryCLI,
		Message:  "Source directory not found",
		Detail:   "The build source directory does not exist.",
	},

	"E200": {
		Category: CategoryBuild,
		Message:  "CSS minification failed",
		Detail:   "The CSS minifier rejected a stylesheet.",
	},
	"E201": {
		Category: CategoryBuild,
		Message:  "HTML minification failed",
		Detail:   "The HTML minifier rejected a document.",
	},
	"E202": {
		Category: CategoryBuild,
		Message:  "Compression failed",
		Detail:   "A file could not be gzip compressed.",
	},
	"E203": {
		Category: CategoryBuild,
		Message:  "File selection failed",
		Detail:   "The pick-files stage could not map the source directory into the destination tree.",
	},
	"E204": {
		Category: CategoryBuild,
		Message:  "Build stage failed",
		Detail:   "A pipeline stage stopped before producing its output.",
	},

	"E220": {
		Category: CategoryDeploy,
		Message:  "Deploy source not found",
		Detail:   "The directory to upload does not exist. Run 'shipsite build' first.",
	},
	"E222": {
		Category: CategoryDeploy,
		Message:  "Upload failed",
		Detail:   "The storage service rejected an upload.",
	},
	"E223": {
		Category: CategoryDeploy,
		Message:  "Missing bucket",
		Detail:   "No destination bucket is configured.",
	},
	"E224": {
		Category: CategoryDeploy,
		Message:  "Object lookup failed",
		Detail:   "The storage service could not report the state of an existing object.",
	},

	"E240": {
		Category: CategoryServe,
		Message:  "Preview server failed",
		Detail:   "The preview server could not listen on the configured address.",
	},
}
