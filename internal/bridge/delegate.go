package bridge

// Delegate receives embedder callbacks the bridge passes through
// without interpretation: page reload, file persistence, file-system
// exposure, and workspace indexing/search. Implementations live in the
// embedder; the bridge only routes.
type Delegate interface {
	ReloadPage()
	SaveToFile(url, content string, saveAs bool)
	AppendToFile(url, content string)
	RequestFileSystems()
	AddFileSystem(kind string)
	RemoveFileSystem(path string)
	IndexPath(requestID int, path, excludedFolders string)
	StopIndexing(requestID int)
	SearchInPath(requestID int, path, query string)
	ShowItemInFolder(path string)
	OpenInNewTab(url string)
}

// NopDelegate ignores every callback. Used when the embedder supplies
// no delegate.
type NopDelegate struct{}

func (NopDelegate) ReloadPage()                                    {}
func (NopDelegate) SaveToFile(url, content string, saveAs bool)    {}
func (NopDelegate) AppendToFile(url, content string)               {}
func (NopDelegate) RequestFileSystems()                            {}
func (NopDelegate) AddFileSystem(kind string)                      {}
func (NopDelegate) RemoveFileSystem(path string)                   {}
func (NopDelegate) IndexPath(requestID int, path, excluded string) {}
func (NopDelegate) StopIndexing(requestID int)                     {}
func (NopDelegate) SearchInPath(requestID int, path, query string) {}
func (NopDelegate) ShowItemInFolder(path string)                   {}
func (NopDelegate) OpenInNewTab(url string)                        {}
