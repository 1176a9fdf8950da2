package manager

import (
	"bufio"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hoppxi/glint/internal/watchers"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type AppManager struct {
	mu      sync.Mutex
	stops   []chan struct{}
	wg      sync.WaitGroup
	started bool
	service *Service
	// open builds the service on START; tests swap it out.
	open func(Settings) (*Service, error)
}

var Manage = &AppManager{
	open: func(cfg Settings) (*Service, error) {
		return Open(cfg, log.Logger)
	},
}

func getSocketPath() string {
	var baseDir string
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		baseDir = runtimeDir
	} else {
		baseDir = os.TempDir()
	}

	socketDir := filepath.Join(baseDir, "glint")
	if err := os.MkdirAll(socketDir, 0o755); err != nil {
		return filepath.Join(os.TempDir(), "glint-socket.sock")
	}
	return filepath.Join(socketDir, "socket.sock")
}

// Service returns the running brightness service, or nil before START.
func (m *AppManager) Service() *Service {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.service
}

func (m *AppManager) StartIPCServer() {
	socketPath := getSocketPath()
	_ = os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		log.Fatal().Err(err).Msg("error listening on socket")
	}
	defer listener.Close()

	log.Info().Str("socket", socketPath).Msg("IPC server listening")
	m.serve(listener)
}

func (m *AppManager) serve(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if strings.Contains(err.Error(), "use of closed network connection") {
				return
			}
			continue
		}
		go m.handleConnection(conn)
	}
}

func (m *AppManager) handleConnection(conn net.Conn) {
	defer conn.Close()

	// commands are newline terminated; a client that closes its write side
	// without one still gets served.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		return
	}

	command := strings.TrimSpace(line)

	switch command {

	case "STOP":
		log.Info().Msg("received STOP via IPC, shutting down")
		_, _ = conn.Write([]byte("OK: Shutting down."))

		// Close immediately so client doesn't hang
		_ = conn.Close()

		go func() {
			m.StopAll()
			time.Sleep(200 * time.Millisecond)
			os.Exit(0)
		}()

	case "STATUS":
		if svc := m.Service(); svc != nil {
			_, _ = conn.Write([]byte(ok("running, %d displays", len(svc.List()))))
			return
		}
		_, _ = conn.Write([]byte("OK: running"))

	case "START":
		if err := m.Start(); err != nil {
			_, _ = conn.Write([]byte(fail(err)))
			return
		}
		_, _ = conn.Write([]byte("OK: Starting"))

	default:
		svc := m.Service()
		if svc == nil {
			_, _ = conn.Write([]byte("ERR: not started"))
			return
		}
		_, _ = conn.Write([]byte(svc.Handle(command)))
	}
}

// Start builds the brightness service and its watchers. Calling it again is a
// no-op.
func (m *AppManager) Start() error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	log.Info().Msg("received START, initializing service and watchers")

	cfg := Config.Load()
	svc, err := m.open(SettingsFrom(cfg))
	if err != nil {
		log.Error().Err(err).Msg("failed to start brightness service")
		return err
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		svc.Close()
		return nil
	}
	m.started = true
	m.service = svc
	m.mu.Unlock()

	m.StartWatcher(watchers.ConfigWatcher(cfg, func(v *viper.Viper) {
		svc.Apply(SettingsFrom(v))
	}, log.Logger))
	m.StartWatcher(watchers.DisplayWatcher(svc, log.Logger))
	return nil
}

func (m *AppManager) StartWatcher(f func(stop <-chan struct{})) {
	stop := make(chan struct{})
	m.mu.Lock()
	m.stops = append(m.stops, stop)
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Error().Interface("panic", r).Msg("watcher panic")
					}
				}()
				f(stop)
			}()

			select {
			case <-stop:
				return
			case <-time.After(2 * time.Second):
				log.Warn().Msg("restarting watcher")
			}
		}
	}()
}

func (m *AppManager) StopAll() {
	m.mu.Lock()
	stops := m.stops
	svc := m.service
	m.stops = nil
	m.service = nil
	m.started = false
	m.mu.Unlock()

	for _, s := range stops {
		close(s)
	}
	m.wg.Wait()

	if svc != nil {
		if err := svc.Close(); err != nil {
			log.Warn().Err(err).Msg("error while closing service")
		}
	}
}

func (m *AppManager) ConnectIPC() (net.Conn, error) {
	return net.DialTimeout("unix", getSocketPath(), 500*time.Millisecond)
}

func (m *AppManager) SendIPCCommand(cmd string) (string, error) {
	conn, err := m.ConnectIPC()
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		return "", err
	}

	data, err := io.ReadAll(conn)
	if err != nil && err != io.EOF {
		return "", err
	}

	return string(data), nil
}
