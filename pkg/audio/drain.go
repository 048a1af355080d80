package audio

// Drain reads from ch until the channel is closed, discarding all values.
// Use it when a consumer stops early but the producer (a capture device or
// [ConvertStream]) still has to run to completion.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
