// exec.go — programmatic one-shot dispatch: a whole line is tokenised at
// once (shell-style quoting via shlex) and resolved against the same
// command table as the character-fed parser. Scripts and tests use this to
// drive commands without an interactive byte stream.
package cli

import (
	"github.com/google/shlex"

	"embedcore-go/status"
	"embedcore-go/x/mathx"
)

// ExecString tokenises line, resolves the command and its arguments, runs
// the handler and ships the response through the IO interface. The notify
// code is returned alongside the status.
func (p *Parser) ExecString(line string) (NotifyCode, error) {
	tokens, err := shlex.Split(line)
	if err != nil {
		return NotifyErr, status.ArgInvalid
	}
	if len(tokens) == 0 {
		return NotifyOK, nil
	}
	idx := p.findCommand(tokens[0])
	if idx < 0 {
		return NotifyErr, status.Fail
	}
	cmd := &p.cmds[idx]

	values := make([]string, len(cmd.Args))
	rest := tokens[1:]
	for len(rest) > 0 {
		argTok := rest[0]
		arg := -1
		for i := range cmd.Args {
			if argTok == cmd.Args[i].Long || argTok == cmd.Args[i].Short {
				arg = i
				break
			}
		}
		if arg < 0 || len(rest) < 2 {
			return NotifyBadArg, status.ArgInvalid
		}
		values[arg] = rest[1]
		rest = rest[2:]
	}

	n, code := cmd.Fn(values, p.resp)
	n = mathx.Clamp(n, 0, len(p.resp))
	if n > 0 {
		p.io.SendChars(p.resp[:n])
	}
	if code != NotifyOK {
		return code, status.Fail
	}
	return code, nil
}
