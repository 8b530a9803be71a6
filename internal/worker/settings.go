package worker

import (
	"encoding/json"
	"errors"
	"strconv"

	"slicer/internal/prefs"
)

// Settings is the worker configuration blob the host application writes to the
// preference store once the worker binds its listening port.
type Settings struct {
	WebsocketServerPort int `json:"websocketServerPort"`
}

// ReadSettings decodes the worker settings blob from the preference store.
// Returns an error when the blob is absent or carries no usable port.
func ReadSettings(store *prefs.Store) (Settings, error) {
	raw, ok, err := store.Get(prefs.KeyWorkerSettings)
	if err != nil {
		return Settings{}, err
	}
	if !ok {
		return Settings{}, errors.New("worker settings not present")
	}
	var settings Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return Settings{}, errors.New("worker settings malformed")
	}
	if settings.WebsocketServerPort <= 0 {
		return Settings{}, errors.New("worker settings carry no port")
	}
	return settings, nil
}

// FormatPort renders a port for preference storage.
func FormatPort(port int) string {
	return strconv.Itoa(port)
}

func parsePort(value string) int {
	port, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return port
}
