package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLIEvalBasic(t *testing.T) {
	out, err := runCLI(t, `"Hello, " & name & "!"`, `{"name":"world"}`)
	require.NoError(t, err)
	assert.Equal(t, `"Hello, world!"`+"\n", out)
}

func TestCLIEvalSum(t *testing.T) {
	out, err := runCLI(t, `$sum(Account.Order.Product.(Price * Quantity))`,
		`{"Account":{"Order":[{"Product":[{"Price":10,"Quantity":2},{"Price":3,"Quantity":5}]},{"Product":[{"Price":1,"Quantity":7}]}]}}`)
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)
}

func TestCLIAstFlag(t *testing.T) {
	out, err := runCLI(t, "--ast", "1 + 2")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestCLIVersionFlag(t *testing.T) {
	out, err := runCLI(t, "-V")
	require.NoError(t, err)
	assert.Contains(t, out, "jsonata-go")
}

func TestCLIParseErrorExitCode(t *testing.T) {
	_, err := runCLI(t, "$[")
	require.Error(t, err)

	var ce *cliError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 2, ce.code)
}

func TestCLIUsageErrorExitCode(t *testing.T) {
	_, err := runCLI(t)
	require.Error(t, err)

	var ce *cliError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 4, ce.code)
}

func TestCLIRuntimeErrorExitCode(t *testing.T) {
	_, err := runCLI(t, `1 + "a"`, `{}`)
	require.Error(t, err)

	var ce *cliError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 3, ce.code)
}
