package main

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/jwtauth"
	"github.com/MrEthical07/jwtauth/internal/server"
	"github.com/MrEthical07/jwtauth/jwt"
)

var benchOpts struct {
	tokens      int
	concurrency int
	ops         int
	revokeRatio float64
}

// benchCmd measures revocation and authentication against the configured backend.
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Load-test revocation and authentication against the configured strategy",
	RunE: func(cmd *cobra.Command, args []string) error {
		if benchOpts.tokens <= 0 || benchOpts.concurrency <= 0 || benchOpts.ops <= 0 {
			return errors.New("tokens, concurrency and ops must be > 0")
		}
		if benchOpts.revokeRatio < 0 || benchOpts.revokeRatio > 1 {
			return errors.New("revoke-ratio must be within [0, 1]")
		}
		f, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if len(f.Users) == 0 {
			return errors.New("bench needs at least one configured user")
		}

		srv, err := server.New(cmd.Context(), f, zerolog.Nop())
		if err != nil {
			return err
		}
		defer srv.Close()

		engine := srv.Engine()
		user, scope := jwt.Subject(f.Users[0].Username), f.Users[0].Scope

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "issuing %d tokens...\n", benchOpts.tokens)
		tokens := make([]string, benchOpts.tokens)
		for i := range tokens {
			token, _, err := engine.Codec().Encode(user, scope, "")
			if err != nil {
				return err
			}
			tokens[i] = token
		}

		revokeN := int(float64(len(tokens)) * benchOpts.revokeRatio)
		revokeStats := runPhase(revokeN, benchOpts.concurrency, func(_ *rand.Rand, i int) error {
			return engine.RevokeToken(cmd.Context(), tokens[i])
		})

		authStats := runPhase(benchOpts.ops, benchOpts.concurrency, func(r *rand.Rand, _ int) error {
			idx := r.Intn(len(tokens))
			_, err := engine.Authenticate(cmd.Context(), tokens[idx], "")
			if idx < revokeN && errors.Is(err, jwtauth.ErrTokenRevoked) {
				return nil
			}
			return err
		})

		printStats(out, []string{"revoke", "authenticate"}, []phaseStats{revokeStats, authStats})
		return nil
	},
}

func init() {
	benchCmd.Flags().IntVar(&benchOpts.tokens, "tokens", 10000, "number of tokens to issue")
	benchCmd.Flags().IntVar(&benchOpts.concurrency, "concurrency", 64, "number of concurrent workers")
	benchCmd.Flags().IntVar(&benchOpts.ops, "ops", 100000, "authenticate operations")
	benchCmd.Flags().Float64Var(&benchOpts.revokeRatio, "revoke-ratio", 0.1, "fraction of tokens revoked before authenticating")
	rootCmd.AddCommand(benchCmd)
}

// runPhase calls op for every index below ops, spread over concurrency workers.
func runPhase(ops, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(w io.Writer, phases []string, stats []phaseStats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Phase", "Ops", "Failures", "Total", "Ops/s", "p50", "p95", "p99"})

	bold := color.New(color.Bold).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	for i, s := range stats {
		failures := fmt.Sprint(s.failures)
		if s.failures > 0 {
			failures = red(failures)
		}
		t.AppendRow(table.Row{
			bold(phases[i]),
			s.ops,
			failures,
			s.total.Round(time.Millisecond),
			fmt.Sprintf("%.0f", s.opsPerS),
			s.p50.Round(time.Microsecond),
			s.p95.Round(time.Microsecond),
			s.p99.Round(time.Microsecond),
		})
	}

	style := table.StyleRounded
	style.Format.Header = text.FormatDefault
	t.SetStyle(style)
	t.Render()
}
