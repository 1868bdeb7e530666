package bridge

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/inspectkit/bridge/internal/dispatch"
	"github.com/inspectkit/bridge/internal/loader"
	"github.com/inspectkit/bridge/internal/prefs"
	"github.com/inspectkit/bridge/internal/protocol"
)

func (b *Bridge) registerHandlers() {
	b.table.Register("dispatchProtocolMessage", b.handleDispatchProtocolMessage)
	b.table.Register("loadCompleted", b.handleLoadCompleted)
	b.table.Register("loadNetworkResource", b.handleLoadNetworkResource)
	b.table.Register("getPreferences", b.handleGetPreferences)
	b.table.Register("setPreference", b.handleSetPreference)
	b.table.Register("removePreference", b.handleRemovePreference)
	b.table.Register("clearPreferences", b.handleClearPreferences)
	b.table.Register("setIsDocked", b.handleSetIsDocked)
	b.table.Register("zoomIn", b.handleZoomIn)
	b.table.Register("zoomOut", b.handleZoomOut)
	b.table.Register("resetZoom", b.handleResetZoom)
	b.table.Register("reattach", b.handleReattach)
	b.table.Register("registerExtensionsAPI", b.handleRegisterExtensionsAPI)
	b.table.Register("setInspectedPageBounds", b.handleSetInspectedPageBounds)
	b.table.Register("inspectedURLChanged", b.handleInspectedURLChanged)
	b.table.Register("save", b.handleSave)
	b.table.Register("append", b.handleAppend)
	b.table.Register("requestFileSystems", b.handleRequestFileSystems)
	b.table.Register("addFileSystem", b.handleAddFileSystem)
	b.table.Register("removeFileSystem", b.handleRemoveFileSystem)
	b.table.Register("indexPath", b.handleIndexPath)
	b.table.Register("stopIndexing", b.handleStopIndexing)
	b.table.Register("searchInPath", b.handleSearchInPath)
	b.table.Register("showItemInFolder", b.handleShowItemInFolder)
	b.table.Register("openInNewTab", b.handleOpenInNewTab)
}

// pageReloadMethod is the one protocol command the bridge intercepts
// instead of forwarding: reloads must go through the embedder so the
// inspector survives them.
const pageReloadMethod = "Page.reload"

func (b *Bridge) handleDispatchProtocolMessage(msg protocol.Message) (dispatch.Result, error) {
	var protocolMessage string
	if err := msg.Param(0, &protocolMessage); err != nil {
		return dispatch.Result{}, fmt.Errorf("protocol message argument: %w", err)
	}

	if isPageReload(protocolMessage) {
		b.logger.Debug("intercepting page reload")
		b.delegate.ReloadPage()
		return dispatch.Result{}, nil
	}

	b.mu.Lock()
	target := b.target
	b.mu.Unlock()
	if target == nil {
		b.logger.Debug("dropping protocol message with no target attached")
		return dispatch.Result{}, nil
	}
	target.DispatchProtocolMessage([]byte(protocolMessage))
	return dispatch.Result{}, nil
}

// isPageReload reports whether a serialized protocol command is an
// identified Page.reload with a params object.
func isPageReload(raw string) bool {
	var cmd struct {
		ID     *int            `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal([]byte(raw), &cmd); err != nil {
		return false
	}
	return cmd.ID != nil && cmd.Method == pageReloadMethod && len(cmd.Params) > 0
}

func (b *Bridge) handleLoadCompleted(protocol.Message) (dispatch.Result, error) {
	b.mu.Lock()
	if b.session == nil {
		b.mu.Unlock()
		return dispatch.Result{}, nil
	}
	b.session.FrontendLoaded = true
	b.mu.Unlock()

	b.logger.Info("frontend loaded")

	// Replay the remembered dock side so the UI opens where the user
	// left it. The stored value may be a quoted JSON string.
	if state, ok := b.prefs.Preferences()["currentDockState"]; ok {
		state = strings.Trim(state, `"`)
		if state != "" {
			b.callClient(protocol.FnSetDockSide, state)
		}
	}
	return dispatch.Result{}, nil
}

func (b *Bridge) handleLoadNetworkResource(msg protocol.Message) (dispatch.Result, error) {
	var (
		rawURL      string
		headersText string
		streamID    int
	)
	if err := msg.Param(0, &rawURL); err != nil {
		return dispatch.Result{}, fmt.Errorf("url argument: %w", err)
	}
	if err := msg.Param(1, &headersText); err != nil {
		return dispatch.Result{}, fmt.Errorf("headers argument: %w", err)
	}
	if err := msg.Param(2, &streamID); err != nil {
		return dispatch.Result{}, fmt.Errorf("stream id argument: %w", err)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || !parsed.IsAbs() {
		b.logger.Debug("rejecting network resource load for invalid url",
			zap.String("url", rawURL))
		return dispatch.Result{Value: loader.NotFoundResponse()}, nil
	}

	// Register the reply before the job starts so a fast completion
	// cannot race the registration.
	complete := func(resp loader.Response) {}
	if msg.HasID {
		id := msg.ID
		b.requests.Register(id, func(value any) {
			b.sendMessageAck(id, value)
		})
		complete = func(resp loader.Response) {
			b.requests.Complete(id, resp)
		}
	}

	b.metrics.LoadsStarted.Inc()
	b.metrics.LoadersActive.Inc()
	loader.Start(loader.Config{
		StreamID: streamID,
		Request: loader.Request{
			URL:     rawURL,
			Headers: parseHeaderText(headersText),
		},
		Fetcher: b.fetcher,
		Sink:    b,
		Complete: func(resp loader.Response) {
			b.metrics.LoadersActive.Dec()
			complete(resp)
		},
		Set:    b.jobs,
		Logger: b.logger,
		OnRetry: func() {
			b.metrics.LoadRetries.Inc()
		},
	})
	return dispatch.Result{Pending: true}, nil
}

// parseHeaderText converts the newline-separated "Name: value" block
// the frontend sends into request headers.
func parseHeaderText(text string) http.Header {
	headers := make(http.Header)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if name == "" {
			continue
		}
		headers.Add(name, value)
	}
	return headers
}

func (b *Bridge) handleGetPreferences(protocol.Message) (dispatch.Result, error) {
	return dispatch.Result{Value: b.prefs.Preferences()}, nil
}

func (b *Bridge) handleSetPreference(msg protocol.Message) (dispatch.Result, error) {
	var name, value string
	if err := msg.Param(0, &name); err != nil {
		return dispatch.Result{}, fmt.Errorf("preference name: %w", err)
	}
	if err := msg.Param(1, &value); err != nil {
		return dispatch.Result{}, fmt.Errorf("preference value: %w", err)
	}
	b.prefs.SetPreference(name, value)
	return dispatch.Result{}, nil
}

func (b *Bridge) handleRemovePreference(msg protocol.Message) (dispatch.Result, error) {
	var name string
	if err := msg.Param(0, &name); err != nil {
		return dispatch.Result{}, fmt.Errorf("preference name: %w", err)
	}
	b.prefs.RemovePreference(name)
	return dispatch.Result{}, nil
}

func (b *Bridge) handleClearPreferences(protocol.Message) (dispatch.Result, error) {
	b.prefs.ClearPreferences()
	return dispatch.Result{}, nil
}

func (b *Bridge) handleSetIsDocked(msg protocol.Message) (dispatch.Result, error) {
	var docked bool
	if err := msg.Param(0, &docked); err != nil {
		return dispatch.Result{}, fmt.Errorf("docked argument: %w", err)
	}
	b.mu.Lock()
	if b.session != nil {
		b.session.Docked = docked
	}
	b.mu.Unlock()
	return dispatch.Result{}, nil
}

func (b *Bridge) handleZoomIn(protocol.Message) (dispatch.Result, error) {
	b.stepZoom(false)
	return dispatch.Result{}, nil
}

func (b *Bridge) handleZoomOut(protocol.Message) (dispatch.Result, error) {
	b.stepZoom(true)
	return dispatch.Result{}, nil
}

func (b *Bridge) handleResetZoom(protocol.Message) (dispatch.Result, error) {
	b.setZoomLevel(0)
	return dispatch.Result{}, nil
}

func (b *Bridge) stepZoom(out bool) {
	b.mu.Lock()
	if b.session == nil {
		b.mu.Unlock()
		return
	}
	level := NextZoomLevel(b.session.ZoomLevel, out)
	b.session.ZoomLevel = level
	b.mu.Unlock()
	b.prefs.SetZoomLevel(level)
}

func (b *Bridge) setZoomLevel(level float64) {
	b.mu.Lock()
	if b.session != nil {
		b.session.ZoomLevel = level
	}
	b.mu.Unlock()
	b.prefs.SetZoomLevel(level)
}

// handleReattach re-runs the attach handshake against the current
// target, which resets the agent-host side of the session.
func (b *Bridge) handleReattach(protocol.Message) (dispatch.Result, error) {
	b.mu.Lock()
	target := b.target
	b.mu.Unlock()
	if target != nil {
		b.Detach()
		b.Attach(target)
	}
	return dispatch.Result{}, nil
}

func (b *Bridge) handleRegisterExtensionsAPI(msg protocol.Message) (dispatch.Result, error) {
	var origin, script string
	if err := msg.Param(0, &origin); err != nil {
		return dispatch.Result{}, fmt.Errorf("origin argument: %w", err)
	}
	if err := msg.Param(1, &script); err != nil {
		return dispatch.Result{}, fmt.Errorf("script argument: %w", err)
	}
	b.mu.Lock()
	if b.session != nil {
		b.session.extensions[origin+"/"] = script
	}
	b.mu.Unlock()
	return dispatch.Result{}, nil
}

func (b *Bridge) handleSetInspectedPageBounds(msg protocol.Message) (dispatch.Result, error) {
	var bounds struct {
		X      int `json:"x"`
		Y      int `json:"y"`
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	if err := msg.Param(0, &bounds); err != nil {
		return dispatch.Result{}, fmt.Errorf("bounds argument: %w", err)
	}
	b.mu.Lock()
	if b.session != nil {
		b.session.InspectedPageBounds = prefs.Rect(bounds)
	}
	b.mu.Unlock()
	return dispatch.Result{}, nil
}

func (b *Bridge) handleInspectedURLChanged(msg protocol.Message) (dispatch.Result, error) {
	var inspectedURL string
	if err := msg.Param(0, &inspectedURL); err != nil {
		return dispatch.Result{}, fmt.Errorf("url argument: %w", err)
	}
	b.mu.Lock()
	if b.session != nil {
		b.session.Title = fmt.Sprintf("Developer Tools - %s", inspectedURL)
	}
	b.mu.Unlock()
	return dispatch.Result{}, nil
}

func (b *Bridge) handleSave(msg protocol.Message) (dispatch.Result, error) {
	var saveURL, content string
	var saveAs bool
	if err := msg.Param(0, &saveURL); err != nil {
		return dispatch.Result{}, fmt.Errorf("url argument: %w", err)
	}
	if err := msg.Param(1, &content); err != nil {
		return dispatch.Result{}, fmt.Errorf("content argument: %w", err)
	}
	if err := msg.Param(2, &saveAs); err != nil {
		return dispatch.Result{}, fmt.Errorf("saveAs argument: %w", err)
	}
	b.delegate.SaveToFile(saveURL, content, saveAs)
	return dispatch.Result{}, nil
}

func (b *Bridge) handleAppend(msg protocol.Message) (dispatch.Result, error) {
	var appendURL, content string
	if err := msg.Param(0, &appendURL); err != nil {
		return dispatch.Result{}, fmt.Errorf("url argument: %w", err)
	}
	if err := msg.Param(1, &content); err != nil {
		return dispatch.Result{}, fmt.Errorf("content argument: %w", err)
	}
	b.delegate.AppendToFile(appendURL, content)
	return dispatch.Result{}, nil
}

func (b *Bridge) handleRequestFileSystems(protocol.Message) (dispatch.Result, error) {
	b.delegate.RequestFileSystems()
	return dispatch.Result{}, nil
}

func (b *Bridge) handleAddFileSystem(msg protocol.Message) (dispatch.Result, error) {
	var fsType string
	if err := msg.Param(0, &fsType); err != nil {
		return dispatch.Result{}, fmt.Errorf("type argument: %w", err)
	}
	b.delegate.AddFileSystem(fsType)
	return dispatch.Result{}, nil
}

func (b *Bridge) handleRemoveFileSystem(msg protocol.Message) (dispatch.Result, error) {
	var path string
	if err := msg.Param(0, &path); err != nil {
		return dispatch.Result{}, fmt.Errorf("path argument: %w", err)
	}
	b.delegate.RemoveFileSystem(path)
	return dispatch.Result{}, nil
}

func (b *Bridge) handleIndexPath(msg protocol.Message) (dispatch.Result, error) {
	var requestID int
	var path, excluded string
	if err := msg.Param(0, &requestID); err != nil {
		return dispatch.Result{}, fmt.Errorf("request id argument: %w", err)
	}
	if err := msg.Param(1, &path); err != nil {
		return dispatch.Result{}, fmt.Errorf("path argument: %w", err)
	}
	if err := msg.Param(2, &excluded); err != nil {
		return dispatch.Result{}, fmt.Errorf("excluded folders argument: %w", err)
	}
	b.delegate.IndexPath(requestID, path, excluded)
	return dispatch.Result{}, nil
}

func (b *Bridge) handleStopIndexing(msg protocol.Message) (dispatch.Result, error) {
	var requestID int
	if err := msg.Param(0, &requestID); err != nil {
		return dispatch.Result{}, fmt.Errorf("request id argument: %w", err)
	}
	b.delegate.StopIndexing(requestID)
	return dispatch.Result{}, nil
}

func (b *Bridge) handleSearchInPath(msg protocol.Message) (dispatch.Result, error) {
	var requestID int
	var path, query string
	if err := msg.Param(0, &requestID); err != nil {
		return dispatch.Result{}, fmt.Errorf("request id argument: %w", err)
	}
	if err := msg.Param(1, &path); err != nil {
		return dispatch.Result{}, fmt.Errorf("path argument: %w", err)
	}
	if err := msg.Param(2, &query); err != nil {
		return dispatch.Result{}, fmt.Errorf("query argument: %w", err)
	}
	b.delegate.SearchInPath(requestID, path, query)
	return dispatch.Result{}, nil
}

func (b *Bridge) handleShowItemInFolder(msg protocol.Message) (dispatch.Result, error) {
	var path string
	if err := msg.Param(0, &path); err != nil {
		return dispatch.Result{}, fmt.Errorf("path argument: %w", err)
	}
	if path != "" {
		b.delegate.ShowItemInFolder(path)
	}
	return dispatch.Result{}, nil
}

func (b *Bridge) handleOpenInNewTab(msg protocol.Message) (dispatch.Result, error) {
	var tabURL string
	if err := msg.Param(0, &tabURL); err != nil {
		return dispatch.Result{}, fmt.Errorf("url argument: %w", err)
	}
	b.delegate.OpenInNewTab(tabURL)
	return dispatch.Result{}, nil
}
