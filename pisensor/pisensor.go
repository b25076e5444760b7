// Package pisensor reads the dark box temperature from a Raspberry Pi
// that owns the 1-wire sensor.  The Pi exposes no network service; a
// short SSH exec of its reader script is the interface.
package pisensor

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

// Config describes how to reach the Pi.
type Config struct {
	// Addr is the host:port of the Pi's SSH daemon
	Addr string `yaml:"addr"`

	// User is the SSH user
	User string `yaml:"user"`

	// KeyFile is the path to the private key used for auth
	KeyFile string `yaml:"keyFile"`

	// Command is the remote reader invocation, default "./getTemperature.py"
	Command string `yaml:"command"`
}

// Sensor reads the box temperature over SSH.
type Sensor struct {
	cfg Config
}

// New returns a Sensor for cfg.  No connection is made until Read.
func New(cfg Config) *Sensor {
	if cfg.Command == "" {
		cfg.Command = "./getTemperature.py"
	}
	return &Sensor{cfg: cfg}
}

// Read executes the reader script on the Pi and returns the temperature
// in Celsius.  The script replies with a "timestamp value" pair.
func (s *Sensor) Read() (float64, error) {
	key, err := os.ReadFile(s.cfg.KeyFile)
	if err != nil {
		return 0, errors.Wrap(err, "pisensor: reading ssh key")
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return 0, errors.Wrap(err, "pisensor: parsing ssh key")
	}
	clientCfg := &ssh.ClientConfig{
		User:            s.cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	}
	client, err := ssh.Dial("tcp", s.cfg.Addr, clientCfg)
	if err != nil {
		return 0, errors.Wrap(err, "pisensor: dialing")
	}
	defer client.Close()
	sess, err := client.NewSession()
	if err != nil {
		return 0, errors.Wrap(err, "pisensor: opening session")
	}
	defer sess.Close()

	now := time.Now().Format("2006-01-02 15:04:05")
	out, err := sess.Output(fmt.Sprintf("%s '%s'", s.cfg.Command, now))
	if err != nil {
		return 0, errors.Wrap(err, "pisensor: running reader")
	}
	return ParseReply(string(out))
}

// ParseReply extracts the temperature from the reader script's
// "timestamp value" reply.
func ParseReply(reply string) (float64, error) {
	fields := strings.Fields(strings.TrimRight(reply, "\n"))
	if len(fields) != 2 {
		return 0, fmt.Errorf("pisensor: malformed reply %q, want 2 fields", reply)
	}
	return strconv.ParseFloat(fields[1], 64)
}
