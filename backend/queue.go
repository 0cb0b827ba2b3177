/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package backend

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/xelabs/go-mysqlstack/sqlparser/depends/sqltypes"
)

// CommandKind type.
type CommandKind int

const (
	// CmdConnect dials the link before anything else is sent.
	CmdConnect CommandKind = iota + 1
	// CmdPing checks a reused session before anything else is sent.
	CmdPing

	// Session settings, merged by kind(and name), the last value wins.
	CmdAutocommit
	CmdIsolation
	CmdTimeZone
	CmdSQLMode
	CmdWaitTimeout
	CmdNetReadTimeout
	CmdNetWriteTimeout
	CmdLoopCheck

	// Structural commands, sent in order and never merged.
	CmdStartTransaction
	CmdXAStart
)

var commandNames = map[CommandKind]string{
	CmdConnect:          "connect",
	CmdPing:             "ping",
	CmdAutocommit:       "autocommit",
	CmdIsolation:        "tx_isolation",
	CmdTimeZone:         "time_zone",
	CmdSQLMode:          "sql_mode",
	CmdWaitTimeout:      "wait_timeout",
	CmdNetReadTimeout:   "net_read_timeout",
	CmdNetWriteTimeout:  "net_write_timeout",
	CmdLoopCheck:        "loop_check",
	CmdStartTransaction: "start_transaction",
	CmdXAStart:          "xa_start",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return fmt.Sprintf("CommandKind(%d)", int(k))
}

// IsSetting reports whether the kind is a mergeable session setting.
func (k CommandKind) IsSetting() bool {
	return k >= CmdAutocommit && k <= CmdLoopCheck
}

// IsStructural reports whether the kind is a transaction-scoped command.
func (k CommandKind) IsStructural() bool {
	return k == CmdStartTransaction || k == CmdXAStart
}

// Command is one deferred unit of session setup.
type Command struct {
	Kind CommandKind
	// Name of the user variable, only for CmdLoopCheck.
	Name  string
	Value string
}

// SetAutocommit returns the autocommit command.
func SetAutocommit(on bool) Command {
	v := "0"
	if on {
		v = "1"
	}
	return Command{Kind: CmdAutocommit, Value: v}
}

// SetIsolation returns the isolation command, level is like 'READ-COMMITTED'.
func SetIsolation(level string) Command {
	return Command{Kind: CmdIsolation, Value: level}
}

// SetTimeZone returns the time zone command.
func SetTimeZone(tz string) Command {
	return Command{Kind: CmdTimeZone, Value: tz}
}

// SetSQLMode returns the sql mode command.
func SetSQLMode(mode string) Command {
	return Command{Kind: CmdSQLMode, Value: mode}
}

// SetWaitTimeout returns the wait_timeout command, in seconds.
func SetWaitTimeout(seconds int) Command {
	return Command{Kind: CmdWaitTimeout, Value: strconv.Itoa(seconds)}
}

// SetNetReadTimeout returns the net_read_timeout command, in seconds.
func SetNetReadTimeout(seconds int) Command {
	return Command{Kind: CmdNetReadTimeout, Value: strconv.Itoa(seconds)}
}

// SetNetWriteTimeout returns the net_write_timeout command, in seconds.
func SetNetWriteTimeout(seconds int) Command {
	return Command{Kind: CmdNetWriteTimeout, Value: strconv.Itoa(seconds)}
}

// SetLoopCheck returns the command setting the loop-check user variable name.
func SetLoopCheck(name string, value string) Command {
	return Command{Kind: CmdLoopCheck, Name: name, Value: value}
}

// StartTransaction returns the start transaction command.
func StartTransaction() Command {
	return Command{Kind: CmdStartTransaction}
}

// XAStart returns the xa start command.
func XAStart(xid string) Command {
	return Command{Kind: CmdXAStart, Value: xid}
}

type settingKey struct {
	kind CommandKind
	name string
}

func (cmd Command) key() settingKey {
	return settingKey{kind: cmd.Kind, name: cmd.Name}
}

func quote(buf *bytes.Buffer, v string) {
	sqltypes.NewVarChar(v).EncodeSQL(buf)
}

// assignment returns the 'name=value' of a setting.
func (cmd Command) assignment() string {
	buf := &bytes.Buffer{}
	switch cmd.Kind {
	case CmdAutocommit, CmdWaitTimeout, CmdNetReadTimeout, CmdNetWriteTimeout:
		fmt.Fprintf(buf, "%s=%s", cmd.Kind, cmd.Value)
	case CmdLoopCheck:
		fmt.Fprintf(buf, "@%s=", cmd.Name)
		quote(buf, cmd.Value)
	default:
		fmt.Fprintf(buf, "%s=", cmd.Kind)
		quote(buf, cmd.Value)
	}
	return buf.String()
}

// statement returns the sql of a structural command.
func (cmd Command) statement() string {
	switch cmd.Kind {
	case CmdXAStart:
		buf := &bytes.Buffer{}
		buf.WriteString("XA START ")
		quote(buf, cmd.Value)
		return buf.String()
	default:
		return "START TRANSACTION"
	}
}

type queuedSetting struct {
	cmd Command
	seq uint64
}

// CommandQueue holds the commands of a connection until the next flush.
// Settings live in a map keyed by kind, keeping the position of their
// first enqueue and the value of their last one. Structural commands are
// kept apart in enqueue order.
type CommandQueue struct {
	seq        uint64
	settings   map[settingKey]*queuedSetting
	structural []Command
	connect    bool
	ping       bool
}

// NewCommandQueue creates a new CommandQueue.
func NewCommandQueue() *CommandQueue {
	return &CommandQueue{
		settings: make(map[settingKey]*queuedSetting),
	}
}

// Enqueue appends cmd or merges it into the queued setting of the same kind.
func (q *CommandQueue) Enqueue(cmd Command) {
	switch {
	case cmd.Kind == CmdConnect:
		q.connect = true
	case cmd.Kind == CmdPing:
		q.ping = true
	case cmd.Kind.IsSetting():
		if s, ok := q.settings[cmd.key()]; ok {
			s.cmd = cmd
			return
		}
		q.seq++
		q.settings[cmd.key()] = &queuedSetting{cmd: cmd, seq: q.seq}
	case cmd.Kind.IsStructural():
		q.structural = append(q.structural, cmd)
	}
}

func (q *CommandQueue) drop(key settingKey) {
	delete(q.settings, key)
}

// Len returns the number of queued entries.
func (q *CommandQueue) Len() int {
	n := len(q.settings) + len(q.structural)
	if q.connect {
		n++
	}
	if q.ping {
		n++
	}
	return n
}

// Settings returns the queued settings in first-enqueue order.
func (q *CommandQueue) Settings() []Command {
	queued := make([]*queuedSetting, 0, len(q.settings))
	for _, s := range q.settings {
		queued = append(queued, s)
	}
	sort.Slice(queued, func(i, j int) bool { return queued[i].seq < queued[j].seq })

	cmds := make([]Command, 0, len(queued))
	for _, s := range queued {
		cmds = append(cmds, s.cmd)
	}
	return cmds
}

// Statements serializes the queue: one SET carrying every setting, then
// the structural commands in enqueue order.
func (q *CommandQueue) Statements() []string {
	stmts := make([]string, 0, 1+len(q.structural))
	if settings := q.Settings(); len(settings) > 0 {
		buf := &bytes.Buffer{}
		buf.WriteString("SET ")
		for i, cmd := range settings {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(cmd.assignment())
		}
		stmts = append(stmts, buf.String())
	}
	for _, cmd := range q.structural {
		stmts = append(stmts, cmd.statement())
	}
	return stmts
}

// Clear discards everything queued.
func (q *CommandQueue) Clear() {
	q.settings = make(map[settingKey]*queuedSetting)
	q.structural = nil
	q.connect = false
	q.ping = false
}

// ClearAtCommit discards the transaction-scoped commands only.
func (q *CommandQueue) ClearAtCommit() {
	q.structural = nil
}

// take moves the whole queue out, the sequence keeps growing.
func (q *CommandQueue) take() *CommandQueue {
	batch := &CommandQueue{
		seq:        q.seq,
		settings:   q.settings,
		structural: q.structural,
		connect:    q.connect,
		ping:       q.ping,
	}
	q.settings = make(map[settingKey]*queuedSetting)
	q.structural = nil
	q.connect = false
	q.ping = false
	return batch
}

// restore puts back an unsent batch, entries queued meanwhile win.
func (q *CommandQueue) restore(batch *CommandQueue) {
	for k, s := range batch.settings {
		if _, ok := q.settings[k]; !ok {
			q.settings[k] = s
		}
	}
	q.structural = append(batch.structural, q.structural...)
	q.connect = q.connect || batch.connect
	q.ping = q.ping || batch.ping
}
