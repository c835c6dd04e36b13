package logfabric

import "fmt"

// StreamerFactory builds a ReadStreamer over the given QueueHandler and
// FileHandler.
type StreamerFactory func(queues *QueueHandler, files *FileHandler, bufSize int) (ReadStreamer, error)

var registry = map[string]StreamerFactory{
	"local": func(queues *QueueHandler, files *FileHandler, bufSize int) (ReadStreamer, error) {
		return NewLocalReadStreamer(queues, files, bufSize, nil), nil
	},
}

// Register adds a named read-streamer backend to the registry. A lookup
// table, not dynamic class loading.
func Register(tag string, factory StreamerFactory) {
	registry[tag] = factory
}

// Open builds a ReadStreamer for the named backend tag.
func Open(tag string, queues *QueueHandler, files *FileHandler, bufSize int) (ReadStreamer, error) {
	factory, ok := registry[tag]
	if !ok {
		return nil, fmt.Errorf("logfabric: unknown backend %q", tag)
	}
	return factory(queues, files, bufSize)
}
