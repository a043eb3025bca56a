package generator

// textDoneMsg is sent when a text attempt has finished.
type textDoneMsg struct {
	Err error
}

// imageDoneMsg is sent when an image attempt has finished.
type imageDoneMsg struct {
	Err error
}

// savedMsg is sent when an export or image save has finished. An empty
// Name with no error means there was nothing to save.
type savedMsg struct {
	What string
	Name string
	Err  error
}
