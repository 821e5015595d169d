package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/Layr-Labs/eigenx-ballot-go/pkg/ballot"
	"github.com/Layr-Labs/eigenx-ballot-go/pkg/config"
	"github.com/Layr-Labs/eigenx-ballot-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-ballot-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-ballot-go/pkg/persistence/factory"
	"github.com/Layr-Labs/eigenx-ballot-go/pkg/types"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ballot",
		Usage: "Anonymous voting with merkle membership proofs",
		Description: `A local voting CLI. Voters hold a secret identity and publish only its commitment.

Each proposal keeps its registered commitments as the leaves of a merkle tree:
- register creates the local identity
- register-to-proposal adds its commitment and updates the voter root
- prove and verify produce and check membership proofs against that root`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   "Directory holding identity, proposals and votes",
				Value:   config.DefaultDataDir,
				EnvVars: []string{config.EnvBallotDataDir},
			},
			&cli.StringFlag{
				Name:    "persistence",
				Usage:   fmt.Sprintf("Storage backend: %s", config.GetSupportedPersistenceTypesString()),
				Value:   config.DefaultPersistenceType.String(),
				EnvVars: []string{config.EnvBallotPersistenceType},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis server address (host:port)",
				Value:   config.DefaultRedisAddress,
				EnvVars: []string{config.EnvBallotRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvBallotRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number (0-15)",
				EnvVars: []string{config.EnvBallotRedisDB},
			},
			&cli.StringFlag{
				Name:    "redis-key-prefix",
				Usage:   "Prefix prepended to every Redis key",
				EnvVars: []string{config.EnvBallotRedisKeyPrefix},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvBallotVerbose},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "register",
				Usage: "Create the local voter identity",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Replace an existing identity",
					},
				},
				Action: registerCommand,
			},
			{
				Name:  "create",
				Usage: "Create a yes/no proposal",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "question",
						Aliases:  []string{"q"},
						Usage:    "Question to vote on",
						Required: true,
					},
				},
				Action: createCommand,
			},
			{
				Name:   "list",
				Usage:  "List proposals",
				Action: listCommand,
			},
			{
				Name:   "register-to-proposal",
				Usage:  "Register the local commitment as a voter of a proposal",
				Flags:  []cli.Flag{proposalIDFlag()},
				Action: registerToProposalCommand,
			},
			{
				Name:  "vote",
				Usage: "Cast a vote",
				Flags: []cli.Flag{
					proposalIDFlag(),
					&cli.StringFlag{
						Name:     "choice",
						Aliases:  []string{"c"},
						Usage:    "One of the proposal's options (yes or no)",
						Required: true,
					},
				},
				Action: voteCommand,
			},
			{
				Name:   "tally",
				Usage:  "Count the votes on a proposal",
				Flags:  []cli.Flag{proposalIDFlag()},
				Action: tallyCommand,
			},
			{
				Name:  "prove",
				Usage: "Produce a membership proof for a voter of a proposal",
				Flags: []cli.Flag{
					proposalIDFlag(),
					&cli.StringFlag{
						Name:  "commitment",
						Usage: "Commitment to prove (default: the local identity's)",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the proof JSON to this file instead of stdout",
					},
				},
				Action: proveCommand,
			},
			{
				Name:  "verify",
				Usage: "Verify a membership proof",
				Description: `Either pass --proof-file with the output of prove, optionally pinning --root,
or pass a bare proof with --proof, --leaf and --root.`,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "proof-file",
						Usage: "File holding a membership proof produced by prove",
					},
					&cli.StringFlag{
						Name:  "proof",
						Usage: `Bare proof JSON: {"sibling_hashes":[...],"sibling_is_left":[...]}`,
					},
					&cli.StringFlag{
						Name:  "leaf",
						Usage: "Leaf digest (hex) for a bare proof",
					},
					&cli.StringFlag{
						Name:  "root",
						Usage: "Expected root (hex); defaults to the proposal's stored voter root",
					},
				},
				Action: verifyCommand,
			},
			{
				Name:  "root",
				Usage: "Compute the merkle root of hex leaf digests",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "leaf",
						Usage: "Leaf digest (hex), repeat in order",
					},
					&cli.IntFlag{
						Name:  "proof-index",
						Usage: "Also print the proof for this leaf index",
						Value: -1,
					},
				},
				Action: rootCommand,
			},
		},
	}
}

func proposalIDFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "proposal-id",
		Aliases:  []string{"p"},
		Usage:    "Proposal ID (the slug printed by create)",
		Required: true,
	}
}

func parseBallotConfig(c *cli.Context) *config.BallotConfig {
	return &config.BallotConfig{
		DataDir:         c.String("data-dir"),
		PersistenceType: config.PersistenceType(c.String("persistence")),
		RedisAddress:    c.String("redis-address"),
		RedisPassword:   c.String("redis-password"),
		RedisDB:         c.Int("redis-db"),
		RedisKeyPrefix:  c.String("redis-key-prefix"),
		Debug:           c.Bool("verbose"),
	}
}

// withService opens the configured store, runs fn and closes the store
func withService(c *cli.Context, fn func(svc *ballot.Service) error) error {
	cfg := parseBallotConfig(c)

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
	if err != nil {
		return errors.Wrapf(err, "failed to create logger")
	}
	defer func() { _ = l.Sync() }()

	store, err := factory.NewPersistence(cfg, l)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s persistence", cfg.PersistenceType)
	}
	defer func() {
		if err := store.Close(); err != nil {
			l.Sugar().Warnw("Failed to close persistence", "error", err)
		}
	}()

	return fn(ballot.NewService(store, l))
}

func registerCommand(c *cli.Context) error {
	return withService(c, func(svc *ballot.Service) error {
		result, err := svc.Register(c.Bool("force"))
		if errors.Is(err, ballot.ErrIdentityExists) {
			return cli.Exit("An identity already exists. Use --force to replace it.", 1)
		}
		if err != nil {
			return errors.Wrapf(err, "failed to register identity")
		}

		fmt.Fprintln(c.App.Writer, "Identity registered!")
		fmt.Fprintln(c.App.Writer, "Trapdoor + Nullifier saved locally.")
		fmt.Fprintf(c.App.Writer, "Public Commitment: %s\n", result.Commitment)
		return nil
	})
}

func createCommand(c *cli.Context) error {
	return withService(c, func(svc *ballot.Service) error {
		proposal, err := svc.CreateProposal(c.String("question"))
		if err != nil {
			return errors.Wrapf(err, "failed to create proposal")
		}

		fmt.Fprintln(c.App.Writer, "Proposal created")
		fmt.Fprintf(c.App.Writer, "ID: %s\n", proposal.ID)
		return nil
	})
}

func listCommand(c *cli.Context) error {
	return withService(c, func(svc *ballot.Service) error {
		proposals, err := svc.ListProposals()
		if err != nil {
			return errors.Wrapf(err, "failed to list proposals")
		}
		if len(proposals) == 0 {
			fmt.Fprintln(c.App.Writer, "No proposals yet")
			return nil
		}
		for _, p := range proposals {
			fmt.Fprintf(c.App.Writer, "%s\t%d voters\t%s\n", p.ID, len(p.Voters), p.Question)
		}
		return nil
	})
}

func registerToProposalCommand(c *cli.Context) error {
	proposalID := c.String("proposal-id")
	return withService(c, func(svc *ballot.Service) error {
		proposal, already, err := svc.RegisterToProposal(proposalID)
		if err != nil {
			return errors.Wrapf(err, "failed to register to proposal %s", proposalID)
		}

		if already {
			fmt.Fprintf(c.App.Writer, "Already registered for proposal %s\n", proposalID)
		} else {
			fmt.Fprintf(c.App.Writer, "Registered to proposal %s\n", proposalID)
		}
		fmt.Fprintf(c.App.Writer, "Voter root: %s\n", proposal.VoterRoot)
		return nil
	})
}

func voteCommand(c *cli.Context) error {
	proposalID := c.String("proposal-id")
	return withService(c, func(svc *ballot.Service) error {
		record, err := svc.Vote(proposalID, c.String("choice"))
		if err != nil {
			return errors.Wrapf(err, "failed to vote on proposal %s", proposalID)
		}

		fmt.Fprintf(c.App.Writer, "Vote recorded: %s\n", record.Choice)
		return nil
	})
}

func tallyCommand(c *cli.Context) error {
	proposalID := c.String("proposal-id")
	return withService(c, func(svc *ballot.Service) error {
		result, err := svc.Tally(proposalID)
		if errors.Is(err, ballot.ErrNoVotes) {
			fmt.Fprintf(c.App.Writer, "No votes have been cast yet for proposal %s\n", proposalID)
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "failed to tally proposal %s", proposalID)
		}

		fmt.Fprintf(c.App.Writer, "Results for proposal %s:\n", proposalID)
		for _, count := range result.Counts {
			fmt.Fprintf(c.App.Writer, "  %s: %d\n", count.Choice, count.Count)
		}
		fmt.Fprintf(c.App.Writer, "  Total votes: %d\n", result.Total)
		return nil
	})
}

func proveCommand(c *cli.Context) error {
	proposalID := c.String("proposal-id")
	return withService(c, func(svc *ballot.Service) error {
		proof, err := svc.Prove(proposalID, c.String("commitment"))
		if err != nil {
			return errors.Wrapf(err, "failed to prove membership in proposal %s", proposalID)
		}

		data, err := json.MarshalIndent(proof, "", "  ")
		if err != nil {
			return errors.Wrapf(err, "failed to encode proof")
		}

		if output := c.String("output"); output != "" {
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return errors.Wrapf(err, "failed to write proof to %s", output)
			}
			fmt.Fprintf(c.App.Writer, "Proof written to: %s\n", output)
			return nil
		}

		fmt.Fprintln(c.App.Writer, string(data))
		return nil
	})
}

func verifyCommand(c *cli.Context) error {
	proofFile := c.String("proof-file")
	rawProof := c.String("proof")

	switch {
	case proofFile != "" && rawProof != "":
		return cli.Exit("Use either --proof-file or --proof, not both", 2)
	case proofFile != "":
		return verifyMembershipFile(c, proofFile)
	case rawProof != "":
		leaf, root := c.String("leaf"), c.String("root")
		if leaf == "" || root == "" {
			return cli.Exit("--proof requires --leaf and --root", 2)
		}
		return reportVerification(c, merkle.VerifyEncodedProof(leaf, []byte(rawProof), root))
	default:
		return cli.Exit("One of --proof-file or --proof is required", 2)
	}
}

func verifyMembershipFile(c *cli.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read proof file %s", path)
	}

	var proof types.MembershipProof
	if err := json.Unmarshal(data, &proof); err != nil {
		return errors.Wrapf(err, "failed to decode proof file %s", path)
	}

	// A pinned root needs no store
	if root := c.String("root"); root != "" {
		return reportVerification(c, merkle.VerifyProof(proof.Commitment, proof.Proof, root))
	}

	return withService(c, func(svc *ballot.Service) error {
		ok, err := svc.VerifyMembership(&proof, "")
		if err != nil {
			return errors.Wrapf(err, "failed to verify proof for proposal %s", proof.ProposalID)
		}
		return reportVerification(c, ok)
	})
}

func reportVerification(c *cli.Context, ok bool) error {
	if !ok {
		return cli.Exit("Proof is INVALID", 1)
	}
	fmt.Fprintln(c.App.Writer, "Proof is valid")
	return nil
}

func rootCommand(c *cli.Context) error {
	tree, err := merkle.BuildMerkleTreeChecked(c.StringSlice("leaf"))
	if err != nil {
		return errors.Wrapf(err, "failed to build tree")
	}

	fmt.Fprintf(c.App.Writer, "Root: %s\n", tree.Root())
	fmt.Fprintf(c.App.Writer, "Leaves: %d\n", tree.LeafCount())

	index := c.Int("proof-index")
	if index < 0 {
		return nil
	}

	proof, err := tree.GenerateProof(index)
	if err != nil {
		return errors.Wrapf(err, "failed to generate proof for index %d", index)
	}
	data, err := json.Marshal(proof)
	if err != nil {
		return errors.Wrapf(err, "failed to encode proof")
	}
	fmt.Fprintf(c.App.Writer, "Proof: %s\n", data)
	fmt.Fprint(c.App.Writer, proof.String())
	return nil
}
