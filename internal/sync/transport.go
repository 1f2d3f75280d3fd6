package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"
)

const (
	counterPath = "/v1/counters"
	historyPath = "/v1/history"

	secretHeader = "X-Fatrack-Secret"

	// processPrefix is the executable name a companion lockfile owner must
	// carry to be trusted.
	processPrefix = "fatrack"
)

var findProcessFunc = ps.FindProcess

// HTTPTransport pushes to a companion process on the same host, discovered
// through the lockfile the companion's listener writes (port|pid|secret).
// Discovery happens per send so a restarted companion is found again.
type HTTPTransport struct {
	lockfilePath string
	client       *http.Client
}

func NewHTTPTransport(lockfilePath string) *HTTPTransport {
	return &HTTPTransport{
		lockfilePath: lockfilePath,
		client:       &http.Client{Timeout: 10 * time.Second},
	}
}

// peer reads and validates the companion lockfile.
func (t *HTTPTransport) peer() (baseURL, secret string, err error) {
	content, err := os.ReadFile(t.lockfilePath)
	if err != nil {
		return "", "", errors.New("companion is not listening")
	}

	parts := strings.Split(strings.TrimSpace(string(content)), "|")
	if len(parts) != 3 {
		return "", "", errors.New("companion lockfile is malformed")
	}

	port, err := strconv.Atoi(parts[0])
	if err != nil || port < 1 || port > 65535 {
		return "", "", errors.New("invalid port in companion lockfile")
	}
	pid, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", "", errors.New("invalid process id in companion lockfile")
	}
	secret = parts[2]
	if strings.TrimSpace(secret) == "" {
		return "", "", errors.New("empty secret in companion lockfile")
	}

	process, err := findProcessFunc(pid)
	if err != nil || process == nil {
		return "", "", errors.New("companion process not running")
	}
	if !strings.HasPrefix(process.Executable(), processPrefix) {
		return "", "", fmt.Errorf("process %d is not a fatrack companion (is %s)", pid, process.Executable())
	}

	return fmt.Sprintf("http://127.0.0.1:%d", port), secret, nil
}

func (t *HTTPTransport) SendCounters(ctx context.Context, payload []byte) error {
	baseURL, secret, err := t.peer()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+counterPath, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(secretHeader, secret)

	res, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("counter push failed with status %d", res.StatusCode)
	}
	return nil
}

func (t *HTTPTransport) SendHistoryFile(ctx context.Context, path string) error {
	baseURL, secret, err := t.peer()
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, baseURL+historyPath, file)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(secretHeader, secret)

	res, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("history push failed with status %d", res.StatusCode)
	}
	return nil
}
