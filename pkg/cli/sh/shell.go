// Package sh provides an interactive shell stepping a simulated ring.
package sh

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"
	"github.com/google/shlex"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell *ishell.Shell
	Sim   *Sim
}

const shellKey = "$shell"

var (
	// flags

	evalOnly   bool
	outputJSON bool
	capacity   = DefaultCapacity
	modeName   = "pingpong"

	errArgs = errors.New("invalid arguments")

	// commands
	commands = []*ishell.Cmd{
		&FeedCmd,
		&CompleteCmd,
		&TimeoutCmd,
		&ReadCmd,
		&StatusCmd,
		&ResetCmd,
		&StopCmd,
		&TxCmd,
		&ScriptCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.IntVar(&capacity, "capacity", capacity, "Half size in bytes.")
	flag.StringVar(&modeName, "mode", modeName, "Channel mode: basic or pingpong.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(s *Sim) *Shell {
	sh := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell: ishell.New(),
		Sim:   s,
	}
	sh.Shell.Set(shellKey, sh)
	sh.updatePrompt()
	for _, cmd := range commands {
		sh.Shell.AddCmd(cmd)
	}
	return sh
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

func (s *Shell) updatePrompt() {
	st := s.Sim.Status()
	s.Shell.SetPrompt(fmt.Sprintf("[%s %d/%d] > ", st.Mode, st.Available, st.Capacity*2))
}

// Output prints v in JSON when requested, or its text form.
func (s *Shell) Output(c *ishell.Context, v interface{}, text string) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text)
}

// RunScript processes commands read from r, one per line. Blank lines and
// lines starting with # are skipped.
func (s *Shell) RunScript(r io.Reader) error {
	lines, err := ParseScript(r)
	if err != nil {
		return err
	}
	for _, args := range lines {
		if err := s.Shell.Process(args...); err != nil {
			return fmt.Errorf("%s: %w", strings.Join(args, " "), err)
		}
	}
	return nil
}

// ParseScript splits a script into command lines.
func ParseScript(r io.Reader) ([][]string, error) {
	var lines [][]string
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		args, err := shlex.Split(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		if len(args) > 0 {
			lines = append(lines, args)
		}
	}
	return lines, scanner.Err()
}

// ParseData parses command arguments into bytes. With a leading -x the
// arguments are hex digits, spaces ignored. Otherwise they are joined by
// spaces.
func ParseData(args []string) ([]byte, error) {
	if len(args) > 0 && args[0] == "-x" {
		return hex.DecodeString(strings.ReplaceAll(strings.Join(args[1:], ""), " ", ""))
	}
	if len(args) == 0 {
		return nil, errArgs
	}
	return []byte(strings.Join(args, " ")), nil
}

// FormatData renders bytes as a quoted string, or hex if not printable.
func FormatData(p []byte) string {
	if strconv.CanBackquote(string(p)) {
		return strconv.Quote(string(p))
	}
	return hex.EncodeToString(p)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			glog.Exit(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	if err := s.RunScript(os.Stdin); err != nil {
		glog.Exit(err)
	}
}

var (
	// FeedCmd delivers bytes to the receive engine.
	FeedCmd = ishell.Cmd{
		Name:    "feed",
		Aliases: []string{"f"},
		Help:    "[-x] DATA...",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			data, err := ParseData(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			n := s.Sim.Feed(data)
			s.Output(c, map[string]int{"accepted": n, "dropped": len(data) - n},
				fmt.Sprintf("accepted %d, dropped %d", n, len(data)-n))
			s.updatePrompt()
		},
	}

	// CompleteCmd fills the live half and raises its completion.
	CompleteCmd = ishell.Cmd{
		Name:    "complete",
		Aliases: []string{"c"},
		Help:    "[FILL]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			fill := byte(0)
			if len(c.Args) > 0 {
				v, err := strconv.ParseUint(c.Args[0], 0, 8)
				if err != nil {
					c.Err(err)
					return
				}
				fill = byte(v)
			}
			n := s.Sim.Complete(fill)
			s.Output(c, map[string]int{"filled": n}, fmt.Sprintf("filled %d", n))
			s.updatePrompt()
		},
	}

	// TimeoutCmd raises the idle interrupt.
	TimeoutCmd = ishell.Cmd{
		Name:    "timeout",
		Aliases: []string{"t", "idle"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			s.Sim.Timeout()
			s.updatePrompt()
		},
	}

	// ReadCmd copies out exposed bytes.
	ReadCmd = ishell.Cmd{
		Name:    "read",
		Aliases: []string{"r"},
		Help:    "[N]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			n := 0
			if len(c.Args) > 0 {
				v, err := strconv.Atoi(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				n = v
			}
			data := s.Sim.Read(n)
			s.Output(c, map[string]string{"data": hex.EncodeToString(data)},
				fmt.Sprintf("%d %s", len(data), FormatData(data)))
			s.updatePrompt()
		},
	}

	// StatusCmd prints ring positions and counters.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"s"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			st := s.Sim.Status()
			s.Output(c, st, st.String())
		},
	}

	// ResetCmd re-arms the ring, optionally with a new size and mode.
	ResetCmd = ishell.Cmd{
		Name: "reset",
		Help: "[CAPACITY [basic|pingpong]]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) == 0 {
				s.Sim.Reset()
				s.updatePrompt()
				return
			}
			size, err := strconv.Atoi(c.Args[0])
			if err != nil || size <= 0 {
				c.Err(errArgs)
				return
			}
			mode := s.Sim.mode
			if len(c.Args) > 1 {
				if mode, err = ParseMode(c.Args[1]); err != nil {
					c.Err(err)
					return
				}
			}
			s.Sim.Reconfigure(size, mode)
			s.updatePrompt()
		},
	}

	// StopCmd stops the ring.
	StopCmd = ishell.Cmd{
		Name: "stop",
		Help: "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			s.Sim.Stop()
			s.updatePrompt()
		},
	}

	// TxCmd transmits bytes through the pacer.
	TxCmd = ishell.Cmd{
		Name: "tx",
		Help: "[-x] DATA...",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			data, err := ParseData(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			out, chunks, err := s.Sim.Transmit(data)
			if err != nil {
				c.Err(err)
				return
			}
			s.Output(c, map[string]interface{}{"data": hex.EncodeToString(out), "chunks": chunks},
				fmt.Sprintf("sent %d in %d chunks: %s", len(out), chunks, FormatData(out)))
		},
	}

	// ScriptCmd runs commands from a file.
	ScriptCmd = ishell.Cmd{
		Name: "script",
		Help: "FILE",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(errArgs)
				return
			}
			f, err := os.Open(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			defer f.Close()
			if err := ShellFrom(c).RunScript(f); err != nil {
				c.Err(err)
			}
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	mode, err := ParseMode(modeName)
	if err != nil {
		glog.Exit(err)
	}
	New(NewSim(capacity, mode)).Run(flag.Args()...)
}
