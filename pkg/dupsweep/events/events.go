// Package events defines the notifications the engine emits during a scan
// and an apply, and a broadcaster that fans them out to channel
// subscribers.
package events

// Listener receives engine notifications. Methods are called synchronously
// from scan workers, possibly from several goroutines at once, and must be
// safe for concurrent use.
type Listener interface {
	// OnFileScanned is called for every file discovered, with the running
	// number of files discovered in the current scan.
	OnFileScanned(scanned int64)

	// OnDuplicateFound is called whenever a duplicate group is created or
	// grows, with a copy of its members.
	OnDuplicateFound(members []string)

	// OnScanFinished is called once when a scan ends, stopped or not.
	OnScanFinished()

	// OnMarkApplied is called once per group after an apply has mutated it.
	OnMarkApplied(file string, members []string)
}

// Funcs adapts plain functions to a Listener. Nil fields are skipped.
type Funcs struct {
	FileScanned    func(scanned int64)
	DuplicateFound func(members []string)
	ScanFinished   func()
	MarkApplied    func(file string, members []string)
}

var _ Listener = Funcs{}

// OnFileScanned implements Listener.
func (f Funcs) OnFileScanned(scanned int64) {
	if f.FileScanned != nil {
		f.FileScanned(scanned)
	}
}

// OnDuplicateFound implements Listener.
func (f Funcs) OnDuplicateFound(members []string) {
	if f.DuplicateFound != nil {
		f.DuplicateFound(members)
	}
}

// OnScanFinished implements Listener.
func (f Funcs) OnScanFinished() {
	if f.ScanFinished != nil {
		f.ScanFinished()
	}
}

// OnMarkApplied implements Listener.
func (f Funcs) OnMarkApplied(file string, members []string) {
	if f.MarkApplied != nil {
		f.MarkApplied(file, members)
	}
}
