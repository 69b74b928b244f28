package model

// Event はセッションコントローラが受け付けるUIイベント。
type Event string

const (
	EventPageLoad    Event = "page_load"
	EventLogin       Event = "login"
	EventLogout      Event = "logout"
	EventRegister    Event = "register"
	EventRevoke      Event = "revoke"
	EventCheckStatus Event = "check_status"
	EventCallback    Event = "callback"
)
