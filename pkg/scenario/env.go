package scenario

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/getmockd/wsmock/pkg/harness"
)

// Env is the data assert expressions see.
//
//	state          current connection state, e.g. "connected"
//	states         every state transition, oldest first
//	readyState     socket ready state, e.g. "OPEN"
//	sent           sent message payloads as strings
//	received       received message payloads as strings
//	history        connection history entries with type, data, code, reason and error
//	beats          total beats of the heartbeats started by the scenario
//	serverReceived payloads the mock server read, empty for the fake socket
//	connections    open mock server connections
type Env struct {
	State          string           `expr:"state"`
	States         []string         `expr:"states"`
	ReadyState     string           `expr:"readyState"`
	Sent           []string         `expr:"sent"`
	Received       []string         `expr:"received"`
	History        []map[string]any `expr:"history"`
	Beats          int              `expr:"beats"`
	ServerReceived []string         `expr:"serverReceived"`
	Connections    int              `expr:"connections"`
}

func compileAssertion(expression string) (*vm.Program, error) {
	program, err := expr.Compile(expression, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expression, err)
	}
	return program, nil
}

func evalAssertion(program *vm.Program, env Env) (bool, error) {
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	ok, _ := out.(bool)
	return ok, nil
}

func snapshot(m *harness.Manager, beats int) Env {
	env := Env{
		State:    string(m.ConnectionState()),
		Beats:    beats,
		Sent:     []string{},
		Received: []string{},
	}
	for _, tr := range m.StateHistory() {
		env.States = append(env.States, string(tr.State))
	}
	if conn := m.Socket(); conn != nil {
		env.ReadyState = conn.ReadyState().String()
	}
	for _, msg := range m.SentMessages() {
		env.Sent = append(env.Sent, msg.Text())
	}
	for _, msg := range m.ReceivedMessages() {
		env.Received = append(env.Received, msg.Text())
	}
	for _, e := range m.ConnectionHistory() {
		env.History = append(env.History, map[string]any{
			"type":   e.Type,
			"data":   e.Text(),
			"code":   e.Code,
			"reason": e.Reason,
			"error":  e.Error,
		})
	}
	if srv := m.Server(); srv != nil {
		for _, r := range srv.Received() {
			env.ServerReceived = append(env.ServerReceived, string(r.Data))
		}
		env.Connections = len(srv.Connections())
	}
	return env
}
