// nolint: gochecknoglobals
package idgenerator

import gonanoid "github.com/matoous/go-nanoid/v2"

const (
	RecordIDLength  = 16
	RequestIDLength = 15
)

// alphabet used in ID generation.
var alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func RecordID() string {
	return gonanoid.MustGenerate(alphabet, RecordIDLength)
}

func RequestID() string {
	return gonanoid.MustGenerate(alphabet, RequestIDLength)
}

func Random(length int) string {
	return gonanoid.MustGenerate(alphabet, length)
}
