// cmd/cli-demo — the command interpreter on stdin/stdout with an echo and
// a sum command, pumped by a superloop.
package main

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"embedcore-go/cli"
)

// stdinIO adapts stdin/stdout to cli.IOInterface. A reader goroutine keeps
// GetChar non-blocking for the superloop.
type stdinIO struct {
	ch chan byte
}

func newStdinIO() *stdinIO {
	s := &stdinIO{ch: make(chan byte, 256)}
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				close(s.ch)
				return
			}
			if n == 1 {
				s.ch <- buf[0]
			}
		}
	}()
	return s
}

func (s *stdinIO) GetChar() byte {
	select {
	case b, ok := <-s.ch:
		if !ok {
			os.Exit(0)
		}
		return b
	default:
		return 0
	}
}

func (s *stdinIO) SendChars(p []byte) { _, _ = os.Stdout.Write(p) }

func main() {
	log := logrus.WithField("mod", "cli-demo")

	var p cli.Parser
	io := newStdinIO()
	if err := p.Init(io, make([]byte, 256), make([]byte, 1024)); err != nil {
		log.Fatal(err)
	}

	must := func(err error) {
		if err != nil {
			log.Fatal(err)
		}
	}
	must(p.AddCommand(cli.Command{
		Name: "echo",
		Desc: "echo a string back",
		Args: []cli.Arg{{Long: "--string", Short: "-s", Desc: "string to echo"}},
		Fn: func(values []string, resp []byte) (int, cli.NotifyCode) {
			return copy(resp, values[0]), cli.NotifyOK
		},
	}))
	must(p.AddCommand(cli.Command{
		Name: "sum",
		Desc: "add two integers",
		Args: []cli.Arg{
			{Long: "--first", Short: "-a", Desc: "first addend"},
			{Long: "--second", Short: "-b", Desc: "second addend"},
		},
		Fn: func(values []string, resp []byte) (int, cli.NotifyCode) {
			a, errA := strconv.Atoi(values[0])
			b, errB := strconv.Atoi(values[1])
			if errA != nil || errB != nil {
				return copy(resp, "error: integers required\n"), cli.NotifyBadArg
			}
			return copy(resp, strconv.Itoa(a+b)+"\n"), cli.NotifyOK
		},
	}))

	io.SendChars([]byte("$ type help for the list of commands\n"))
	for {
		p.Run()
	}
}
