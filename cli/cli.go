// Package cli implements a line-oriented command interpreter fed one
// character per Run call. A command line is tokenised by a state machine
// (command, then alternating argument/value tokens), resolved against the
// registered command table and dispatched to the command's handler.
//
// Arguments carry long ("--name") and short ("-n") forms; quoted values
// keep embedded spaces; '\r' or '\n' terminates and executes the line.
package cli

import (
	"github.com/sirupsen/logrus"

	"embedcore-go/status"
	"embedcore-go/x/mathx"
)

var log = logrus.WithField("mod", "cli")

// NotifyCode classifies a command handler's outcome.
type NotifyCode uint8

const (
	NotifyOK NotifyCode = iota
	NotifyBadArg
	NotifyErr
)

// Handler executes a resolved command. values holds one entry per declared
// argument, "" where the argument was not supplied. The handler writes its
// response into resp and returns the number of bytes written plus a notify
// code; the response is shipped verbatim through the IO interface.
type Handler func(values []string, resp []byte) (int, NotifyCode)

// Arg declares one argument of a command.
type Arg struct {
	Long  string // e.g. "--speed"
	Short string // e.g. "-s"
	Desc  string
}

// Command is one entry of the command table.
type Command struct {
	Name string
	Desc string
	Args []Arg
	Fn   Handler
}

// IOInterface supplies input characters and ships responses. GetChar
// returns 0 when nothing is available.
type IOInterface interface {
	GetChar() byte
	SendChars(p []byte)
}

// maxArgs bounds declared arguments per command.
const maxArgs = 8

type parseState uint8

const (
	stateCommand parseState = iota
	stateArgument
	stateValue
	stateError
)

// Parser is one interpreter instance. Initialise with Init.
type Parser struct {
	io   IOInterface
	cmds []Command

	buf        []byte // in-flight command line
	idx        int
	tokenStart int

	state      parseState
	curCmd     int
	curArg     int
	values     [maxArgs]string
	quoteCount int

	resp []byte // handler response buffer
}

// Init binds the IO interface and buffers and registers the built-in help
// command. lineBuf holds the in-flight command line; respBuf is handed to
// handlers for their response.
func (p *Parser) Init(io IOInterface, lineBuf, respBuf []byte) error {
	if io == nil || len(lineBuf) == 0 || len(respBuf) == 0 {
		return status.ArgInvalid
	}
	p.io = io
	p.buf = lineBuf
	p.resp = respBuf
	p.cmds = p.cmds[:0]
	p.resetLine()
	return p.AddCommand(Command{
		Name: "help",
		Desc: "show the command table",
		Fn:   p.helpHandler,
	})
}

// AddCommand registers a command.
func (p *Parser) AddCommand(cmd Command) error {
	if cmd.Name == "" || cmd.Fn == nil || len(cmd.Args) > maxArgs {
		return status.ArgInvalid
	}
	p.cmds = append(p.cmds, cmd)
	return nil
}

func (p *Parser) helpHandler(values []string, resp []byte) (int, NotifyCode) {
	n := 0
	for i := range p.cmds {
		c := &p.cmds[i]
		n += copyClamped(resp[n:], c.Name)
		for _, a := range c.Args {
			n += copyClamped(resp[n:], " "+a.Long+"|"+a.Short)
		}
		n += copyClamped(resp[n:], " - "+c.Desc+"\n")
	}
	return n, NotifyOK
}

func copyClamped(dst []byte, s string) int {
	return copy(dst, s[:mathx.Min(len(s), len(dst))])
}

func (p *Parser) resetLine() {
	p.idx = 0
	p.tokenStart = 0
	p.state = stateCommand
	p.curCmd = -1
	p.curArg = -1
	p.quoteCount = 0
	for i := range p.values {
		p.values[i] = ""
	}
}

func (p *Parser) findCommand(name string) int {
	for i := range p.cmds {
		if p.cmds[i].Name == name {
			return i
		}
	}
	return -1
}

func (p *Parser) findArg(token string) int {
	args := p.cmds[p.curCmd].Args
	for i := range args {
		if token == args[i].Long || token == args[i].Short {
			return i
		}
	}
	return -1
}

// fail ships a diagnostic and swallows the rest of the line.
func (p *Parser) fail(msg string) {
	p.io.SendChars([]byte(msg))
	p.state = stateError
}

// token returns the current token, excluding the just-consumed terminator.
func (p *Parser) token() string {
	return string(p.buf[p.tokenStart : p.idx-1])
}

func isTerminator(ch byte) bool { return ch == '\n' || ch == '\r' }

// Run consumes at most one character from the IO interface. Call it from a
// task worker or the superloop.
func (p *Parser) Run() {
	ch := p.io.GetChar()
	if ch == 0 {
		return
	}
	p.feed(ch)
}

func (p *Parser) feed(ch byte) {
	if p.state == stateError {
		if isTerminator(ch) {
			p.resetLine()
		}
		return
	}
	if p.idx >= len(p.buf) {
		p.fail("error: line too long\n")
		return
	}
	p.buf[p.idx] = ch
	p.idx++

	switch p.state {
	case stateCommand:
		p.feedCommand(ch)
	case stateArgument:
		p.feedArgument(ch)
	case stateValue:
		p.feedValue(ch)
	}
}

func (p *Parser) feedCommand(ch byte) {
	switch {
	case ch == ' ':
		tok := p.token()
		if tok == "" {
			p.tokenStart = p.idx // skip leading spaces
			return
		}
		idx := p.findCommand(tok)
		if idx < 0 {
			p.fail("unknown command: " + tok + "\n")
			return
		}
		p.curCmd = idx
		p.state = stateArgument
		p.tokenStart = p.idx

	case isTerminator(ch):
		tok := p.token()
		if tok == "" {
			p.resetLine()
			return
		}
		idx := p.findCommand(tok)
		if idx < 0 {
			p.io.SendChars([]byte("unknown command: " + tok + "\n"))
			p.resetLine()
			return
		}
		p.curCmd = idx
		if len(p.cmds[idx].Args) > 0 {
			p.io.SendChars([]byte("error: " + tok + " requires arguments\n"))
			p.printUsage(idx)
			p.resetLine()
			return
		}
		p.execute()
	}
}

func (p *Parser) feedArgument(ch byte) {
	switch {
	case ch == ' ':
		tok := p.token()
		if tok == "" {
			p.tokenStart = p.idx // skip leading spaces
			return
		}
		if tok[0] != '-' {
			p.fail("error: expected argument, got " + tok + "\n")
			p.printUsage(p.curCmd)
			return
		}
		arg := p.findArg(tok)
		if arg < 0 {
			p.fail("unknown argument: " + tok + "\n")
			p.printUsage(p.curCmd)
			return
		}
		p.curArg = arg
		p.state = stateValue
		p.tokenStart = p.idx
		p.quoteCount = 0

	case isTerminator(ch):
		if p.token() == "" {
			p.execute()
			return
		}
		p.io.SendChars([]byte("error: argument without value\n"))
		p.resetLine()
	}
}

func (p *Parser) feedValue(ch byte) {
	switch {
	case ch == '"':
		p.quoteCount++

	case ch == ' ':
		if p.quoteCount%2 == 1 {
			return // embedded space inside quotes
		}
		if p.token() == "" {
			p.tokenStart = p.idx // skip leading spaces
			return
		}
		p.storeValue()
		p.state = stateArgument
		p.tokenStart = p.idx

	case isTerminator(ch):
		if p.quoteCount%2 == 1 {
			p.io.SendChars([]byte("error: unterminated quote\n"))
			p.resetLine()
			return
		}
		if p.token() == "" {
			p.io.SendChars([]byte("error: argument without value\n"))
			p.resetLine()
			return
		}
		p.storeValue()
		p.execute()
	}
}

// storeValue records the current token as the value of the current
// argument, stripping surrounding quotes.
func (p *Parser) storeValue() {
	tok := p.token()
	if len(tok) >= 2 && tok[0] == '"' && tok[len(tok)-1] == '"' {
		tok = tok[1 : len(tok)-1]
	}
	p.values[p.curArg] = tok
}

func (p *Parser) printUsage(idx int) {
	c := &p.cmds[idx]
	line := "usage: " + c.Name
	for _, a := range c.Args {
		line += " " + a.Long + "|" + a.Short + " <value>"
	}
	p.io.SendChars([]byte(line + "\n"))
}

// execute dispatches the resolved command, ships the handler's response,
// and resets for the next line.
func (p *Parser) execute() {
	cmd := &p.cmds[p.curCmd]
	values := make([]string, len(cmd.Args))
	copy(values, p.values[:len(cmd.Args)])

	n, code := cmd.Fn(values, p.resp)
	n = mathx.Clamp(n, 0, len(p.resp))
	if n > 0 {
		p.io.SendChars(p.resp[:n])
	}
	if code != NotifyOK {
		log.Warnf("command %s: notify code %d", cmd.Name, code)
	}
	p.resetLine()
}
