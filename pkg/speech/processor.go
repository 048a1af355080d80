package speech

// Processor is a single stage of a speech pipeline. Stages receive every audio
// frame in order together with the shared [Context] and may read or mutate its
// flags.
//
// Frames are mono 16-bit PCM at the pipeline's configured sample rate. The
// frame slice is owned by the caller and must not be retained after Process
// returns.
//
// Processors are not safe for concurrent use. The pipeline driver guarantees
// that at most one call is in flight per instance.
type Processor interface {
	// Process consumes one audio frame. A returned error is session-ending:
	// the processor's internal windows may be inconsistent and the caller must
	// discard it.
	Process(sc *Context, frame []int16) error

	// Reset returns the processor to its freshly constructed state without
	// releasing resources.
	Reset() error

	// Close releases all resources held by the processor, including any native
	// inference sessions. Calling Close more than once is safe.
	Close() error
}
