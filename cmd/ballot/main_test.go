package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/Layr-Labs/eigenx-ballot-go/pkg/merkle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

var commitmentPattern = regexp.MustCompile(`Public Commitment: ([0-9a-f]{64})`)

// runCLI runs the app against dataDir and returns what it printed
func runCLI(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out

	argv := append([]string{"ballot", "--data-dir", dataDir}, args...)
	err := app.Run(argv)
	return out.String(), err
}

func TestCLI_VotingFlow(t *testing.T) {
	exiter := cli.OsExiter
	cli.OsExiter = func(int) {}
	t.Cleanup(func() { cli.OsExiter = exiter })

	dir := t.TempDir()

	out, err := runCLI(t, dir, "register")
	require.NoError(t, err)
	match := commitmentPattern.FindStringSubmatch(out)
	require.Len(t, match, 2, out)
	commitment := match[1]

	_, err = runCLI(t, dir, "register")
	require.Error(t, err, "second register without --force must fail")

	out, err = runCLI(t, dir, "create", "--question", "Should we ship v2?")
	require.NoError(t, err)
	assert.Contains(t, out, "ID: should-we-ship-v2")

	out, err = runCLI(t, dir, "register-to-proposal", "--proposal-id", "should-we-ship-v2")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered to proposal should-we-ship-v2")
	assert.Contains(t, out, merkle.BuildMerkleTree([]string{commitment}).Root())

	out, err = runCLI(t, dir, "tally", "-p", "should-we-ship-v2")
	require.NoError(t, err)
	assert.Contains(t, out, "No votes have been cast yet")

	_, err = runCLI(t, dir, "vote", "-p", "should-we-ship-v2", "--choice", "maybe")
	require.Error(t, err)

	out, err = runCLI(t, dir, "vote", "-p", "should-we-ship-v2", "--choice", "yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Vote recorded: yes")

	out, err = runCLI(t, dir, "tally", "-p", "should-we-ship-v2")
	require.NoError(t, err)
	assert.Contains(t, out, "yes: 1")
	assert.Contains(t, out, "Total votes: 1")

	out, err = runCLI(t, dir, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "should-we-ship-v2\t1 voters")

	proofPath := filepath.Join(t.TempDir(), "proof.json")
	_, err = runCLI(t, dir, "prove", "-p", "should-we-ship-v2", "--output", proofPath)
	require.NoError(t, err)
	assert.FileExists(t, proofPath)

	out, err = runCLI(t, dir, "verify", "--proof-file", proofPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Proof is valid")

	_, err = runCLI(t, dir, "verify", "--proof-file", proofPath, "--root", merkle.EmptyRoot())
	require.Error(t, err)
}

func TestCLI_RootAndBareProof(t *testing.T) {
	exiter := cli.OsExiter
	cli.OsExiter = func(int) {}
	t.Cleanup(func() { cli.OsExiter = exiter })

	dir := t.TempDir()
	leaves := []string{
		merkle.HashHex([]byte("leaf1")),
		merkle.HashHex([]byte("leaf2")),
		merkle.HashHex([]byte("leaf3")),
	}
	tree := merkle.BuildMerkleTree(leaves)

	out, err := runCLI(t, dir, "root", "--leaf", leaves[0], "--leaf", leaves[1], "--leaf", leaves[2], "--proof-index", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Root: "+tree.Root())
	assert.Contains(t, out, "Leaves: 3")
	assert.Contains(t, out, "level 0: sibling_is_left=false hash="+leaves[2])

	out, err = runCLI(t, dir, "root")
	require.NoError(t, err)
	assert.Contains(t, out, "Root: "+merkle.EmptyRoot())

	_, err = runCLI(t, dir, "root", "--leaf", "zz")
	require.Error(t, err)

	proof, err := tree.GenerateProof(1)
	require.NoError(t, err)
	data, err := proof.MarshalJSON()
	require.NoError(t, err)

	out, err = runCLI(t, dir, "verify", "--proof", string(data), "--leaf", leaves[1], "--root", tree.Root())
	require.NoError(t, err)
	assert.Contains(t, out, "Proof is valid")

	_, err = runCLI(t, dir, "verify", "--proof", string(data), "--leaf", leaves[0], "--root", tree.Root())
	require.Error(t, err)

	_, err = runCLI(t, dir, "verify")
	require.Error(t, err)

	// Nothing was opened, so no store files were created
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
