package upstream

import (
	"log"
	"os"
)

const (
	// EnvCitylingMode is the environment variable name for mode selection.
	EnvCitylingMode = "CITYLING_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewChatClient creates an upstream client based on the CITYLING_MODE
// environment variable. If CITYLING_MODE=MOCK, returns a MockClient;
// otherwise returns a real Client.
func NewChatClient() ChatClient {
	mode := os.Getenv(EnvCitylingMode)

	if mode == ModeMock {
		log.Println("CITYLING_MODE=MOCK detected, using mock upstream client")
		return NewMockClient()
	}

	return NewClient()
}
