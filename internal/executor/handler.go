package executor

// Handler receives lifecycle callbacks for one execution. Every method is
// invoked from a background goroutine, never from the Execute caller.
// OnSuccess or OnFailure is called exactly once, followed by OnFinish.
type Handler interface {
	OnStart()
	OnProgress(line string)
	OnSuccess(result CommandResult)
	OnFailure(result CommandResult)
	OnFinish()
}

// HandlerFuncs adapts optional functions to the Handler interface.
type HandlerFuncs struct {
	Start    func()
	Progress func(line string)
	Success  func(result CommandResult)
	Failure  func(result CommandResult)
	Finish   func()
}

func (h HandlerFuncs) OnStart() {
	if h.Start != nil {
		h.Start()
	}
}

func (h HandlerFuncs) OnProgress(line string) {
	if h.Progress != nil {
		h.Progress(line)
	}
}

func (h HandlerFuncs) OnSuccess(result CommandResult) {
	if h.Success != nil {
		h.Success(result)
	}
}

func (h HandlerFuncs) OnFailure(result CommandResult) {
	if h.Failure != nil {
		h.Failure(result)
	}
}

func (h HandlerFuncs) OnFinish() {
	if h.Finish != nil {
		h.Finish()
	}
}

// Recorder observes every completed execution, after the handler.
type Recorder interface {
	OnComplete(result CommandResult)
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(result CommandResult)

// OnComplete calls f.
func (f RecorderFunc) OnComplete(result CommandResult) { f(result) }
