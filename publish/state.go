package publish

// State 发布流程所处的阶段
type State int

const (
	StateInit State = iota
	StateBrowserLaunched
	StateNavigated
	StateLoginRequired
	StateAuthenticated
	StateEditorReady
	StateTitleFilled
	StateContentInjected
	StateImagesAttached
	StateSubmitting
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateInit:            "Init",
	StateBrowserLaunched: "BrowserLaunched",
	StateNavigated:       "Navigated",
	StateLoginRequired:   "LoginRequired",
	StateAuthenticated:   "Authenticated",
	StateEditorReady:     "EditorReady",
	StateTitleFilled:     "TitleFilled",
	StateContentInjected: "ContentInjected",
	StateImagesAttached:  "ImagesAttached",
	StateSubmitting:      "Submitting",
	StateDone:            "Done",
	StateFailed:          "Failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// Terminal 是否为终止状态
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
