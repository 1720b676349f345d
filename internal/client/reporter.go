package client

// Reporter receives progress notifications during a transfer. It is injected
// into the session so different frontends (progress bar, logs, tests) can
// observe the chunk loop without the session knowing about them.
type Reporter interface {
	// Start announces a transfer and its total byte count. Action is
	// "upload" or "download".
	Start(action, filename string, totalBytes int64)
	// Update reports the cumulative bytes moved so far, including any bytes
	// already present before a resumed transfer.
	Update(bytesDone int64)
	// Done marks the end of the transfer, with the error that stopped it if
	// any.
	Done(err error)
}

// NopReporter discards all progress notifications.
type NopReporter struct{}

func (NopReporter) Start(action, filename string, totalBytes int64) {}
func (NopReporter) Update(bytesDone int64)                          {}
func (NopReporter) Done(err error)                                  {}
