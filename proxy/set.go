/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package proxy

import (
	"strconv"
	"strings"

	"github.com/radondb/fedlink/backend"

	"github.com/pkg/errors"
	"github.com/xelabs/go-mysqlstack/sqldb"
	"github.com/xelabs/go-mysqlstack/sqlparser/depends/sqltypes"
)

// setExpr is one 'name = value' of a SET statement.
// System variables are lower case with the scope stripped, user variables
// keep their '@'.
type setExpr struct {
	name  string
	value string
}

// splitOutside splits s on sep when outside quotes.
func splitOutside(s string, sep byte) []string {
	var parts []string
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// unquote strips the quotes of a string literal and decodes its escapes.
func unquote(v string) string {
	if len(v) < 2 || (v[0] != '\'' && v[0] != '"') || v[len(v)-1] != v[0] {
		return v
	}
	q := v[0]
	v = v[1 : len(v)-1]

	var b strings.Builder
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c == '\\' && i+1 < len(v):
			i++
			switch v[i] {
			case '0':
				b.WriteByte(0)
			case 'b':
				b.WriteByte('\b')
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'Z':
				b.WriteByte(26)
			default:
				b.WriteByte(v[i])
			}
		case c == q && i+1 < len(v) && v[i+1] == q:
			i++
			b.WriteByte(q)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// parseSet parses the assignments of a SET statement.
func parseSet(query string) ([]setExpr, error) {
	body := strings.TrimSpace(query[len("set"):])
	lower := strings.ToLower(body)

	// SET [SESSION] TRANSACTION ISOLATION LEVEL ...
	for _, prefix := range []string{"session transaction isolation level ", "transaction isolation level "} {
		if strings.HasPrefix(lower, prefix) {
			level := strings.Fields(strings.ToUpper(body[len(prefix):]))
			return []setExpr{{name: "tx_isolation", value: strings.Join(level, "-")}}, nil
		}
	}

	var exprs []setExpr
	for _, part := range splitOutside(body, ',') {
		part = strings.TrimSpace(part)
		lower := strings.ToLower(part)
		if part == "" {
			return nil, errors.Errorf("set.empty.assignment:%s", query)
		}
		if strings.HasPrefix(lower, "names ") || strings.HasPrefix(lower, "character set ") || strings.HasPrefix(lower, "charset ") {
			exprs = append(exprs, setExpr{name: "names"})
			continue
		}

		kv := splitOutside(part, '=')
		if len(kv) != 2 {
			return nil, errors.Errorf("set.invalid.assignment:%s", part)
		}
		name := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(kv[0], ":")))
		value := unquote(strings.TrimSpace(kv[1]))

		switch {
		case strings.HasPrefix(name, "global "), strings.HasPrefix(name, "@@global."):
			return nil, sqldb.NewSQLErrorf(sqldb.ER_SPECIFIC_ACCESS_DENIED_ERROR, "Access denied; you need (at least one of) the SUPER privilege(s) for this operation")
		case strings.HasPrefix(name, "session "):
			name = strings.TrimSpace(name[len("session "):])
		case strings.HasPrefix(name, "local "):
			name = strings.TrimSpace(name[len("local "):])
		case strings.HasPrefix(name, "@@session."):
			name = name[len("@@session."):]
		case strings.HasPrefix(name, "@@local."):
			name = name[len("@@local."):]
		case strings.HasPrefix(name, "@@"):
			name = name[len("@@"):]
		}
		name = strings.Replace(name, "`", "", -1)
		exprs = append(exprs, setExpr{name: name, value: value})
	}
	return exprs, nil
}

func parseSwitch(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "on", "true":
		return true, nil
	case "0", "off", "false":
		return false, nil
	}
	return false, errors.Errorf("set.invalid.switch.value[%s]", v)
}

// handleSet used to handle the SET command.
// The loop markers(@fedlink_lc_*) are kept on the session, the system
// settings the remote sessions need are queued on every statement of the
// session.
func (spanner *Spanner) handleSet(session *session, query string) (*sqltypes.Result, error) {
	log := spanner.log
	exprs, err := parseSet(query)
	if err != nil {
		return nil, sqldb.NewSQLErrorf(sqldb.ER_SYNTAX_ERROR, "%v", err)
	}

	qr := &sqltypes.Result{}
	for _, expr := range exprs {
		switch name := expr.name; {
		case strings.HasPrefix(name, "@"):
			if backend.IsMarkerName(name[1:]) {
				session.setMarker(name[1:], expr.value)
			}
		case name == "autocommit":
			on, err := parseSwitch(expr.value)
			if err != nil {
				return nil, sqldb.NewSQLErrorf(sqldb.ER_UNKNOWN_ERROR, "Variable 'autocommit' can't be set to the value of '%s'", expr.value)
			}
			session.setSetting(backend.SetAutocommit(on))
		case name == "tx_isolation" || name == "transaction_isolation":
			session.setSetting(backend.SetIsolation(strings.ToUpper(expr.value)))
		case name == "time_zone":
			session.setSetting(backend.SetTimeZone(expr.value))
		case name == "sql_mode":
			session.setSetting(backend.SetSQLMode(expr.value))
		case name == "wait_timeout" || name == "net_read_timeout" || name == "net_write_timeout":
			seconds, err := strconv.Atoi(expr.value)
			if err != nil {
				return nil, sqldb.NewSQLErrorf(sqldb.ER_UNKNOWN_ERROR, "Incorrect argument type to variable '%s'", name)
			}
			switch name {
			case "wait_timeout":
				session.setSetting(backend.SetWaitTimeout(seconds))
			case "net_read_timeout":
				session.setSetting(backend.SetNetReadTimeout(seconds))
			default:
				session.setSetting(backend.SetNetWriteTimeout(seconds))
			}
		case name == "names":
		default:
			log.Warning("proxy.set.variable[%s].ignored", name)
			qr.Warnings++
		}
	}
	return qr, nil
}
