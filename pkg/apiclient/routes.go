package apiclient

// Registry server routes, relative to the configured path prefix.
const (
	RouteHealthcheck     = "healthcheck"
	RouteAuthToken       = "auth/token"
	RouteStorageSettings = "storage/settings"
	RouteFiles           = "files"
	RouteFilesDelete     = "files/delete"
	RouteFilesMultipart  = "files/multipart"
	RouteFilesPresigned  = "files/presigned"
	RouteFilesList       = "files/list"
	RouteFilesListInfo   = "files/list/info"
)
