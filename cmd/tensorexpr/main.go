// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// tensorexpr plans and runs a product of tensors given in einsum notation.
//
// Usage:
//
//	tensorexpr -dims i=40,k=50,l=60,j=30 plan "ik,kl,lj->ij"
//	tensorexpr -dims i=400,k=500,l=600,j=300 -kind disk -repeat 10 run "ik,kl,lj->ij"
//
// "plan" prints the pairwise contractions chosen by the optimizer, with their estimated cost.
// "run" builds random tensors of the given kind, evaluates the product and reports the timing.
package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/tensorexpr/backends"
	_ "github.com/gomlx/tensorexpr/backends/default"
	"github.com/gomlx/tensorexpr/pkg/core/contraction"
	"github.com/gomlx/tensorexpr/pkg/core/tensors"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

var (
	flagDims   = flag.String("dims", "", "Extents of the labels, e.g. \"i=40,k=50,j=30\".")
	flagKind   = flag.String("kind", "core", fmt.Sprintf("Storage kind of the tensors for \"run\", one of %q.", backends.KindStrings()))
	flagConfig = flag.String("config", "", fmt.Sprintf("Backend configuration, see %s. E.g. \"disk:dir=/scratch\".", backends.TENSOREXPR_BACKEND))
	flagRepeat = flag.Int("repeat", 1, "Number of times to evaluate the product in \"run\".")
	flagSeed   = flag.Uint64("seed", 42, "Seed for the random values of the operands in \"run\".")
	flagPrint  = flag.Bool("print", false, "Print the values of the result of \"run\".")
)

func main() {
	klog.InitFlags(nil)
	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] plan|run <einsum>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	args := flag.Args()
	if len(args) != 2 {
		flag.Usage()
		os.Exit(1)
	}
	must.M(tensors.Initialize(*flagConfig))
	defer tensors.Finalize()

	e, err := parseEinsum(args[1])
	if err == nil {
		switch args[0] {
		case "plan":
			err = plan(os.Stdout, e)
		case "run":
			err = run(os.Stdout, e)
		default:
			err = errors.Errorf("unknown command %q, expected \"plan\" or \"run\"", args[0])
		}
	}
	if err != nil {
		klog.Errorf("%+v", err)
		os.Exit(1)
	}
}

// optimize returns the plan of the product with the extents given by -dims.
func optimize(e einsum) (contraction.Plan, error) {
	extents, err := parseDims(*flagDims, e)
	if err != nil {
		return contraction.Plan{}, err
	}
	return contraction.Optimize(e.operands, extents, e.output)
}

func plan(w io.Writer, e einsum) error {
	p, err := optimize(e)
	if err != nil {
		return err
	}
	nodes := p.Operands(e.operands)
	table := newTable(len(p.Steps)+1, true, lipgloss.Right, lipgloss.Left, lipgloss.Left, lipgloss.Left, lipgloss.Right)
	table.Headers("Step", "Left", "Right", "Result", "Flops", "Memory")
	nodeName := func(node int) string {
		if node < len(e.operands) {
			return fmt.Sprintf("#%d %s", node, strings.Join(nodes[node], ""))
		}
		return fmt.Sprintf("step %d %s", node-len(e.operands), strings.Join(nodes[node], ""))
	}
	for ii, step := range p.Steps {
		table.Row(fmt.Sprint(ii), nodeName(step.Left), nodeName(step.Right), strings.Join(step.Result, ""),
			humanize.SIWithDigits(step.Flops, 2, ""), humanize.IBytes(uint64(step.Memory)*8))
	}
	table.Row("total", "", "", "", humanize.SIWithDigits(p.Cost.Flops, 2, ""), humanize.IBytes(uint64(p.Cost.Memory)*8))
	_, err = fmt.Fprintf(w, "%s\n%s\n", titleStyle.Render(fmt.Sprintf("Plan (%s)", p.Method)), table.Render())
	return err
}

func run(w io.Writer, e einsum) error {
	kind, err := backends.KindString(*flagKind)
	if err != nil {
		return errors.Wrapf(err, "invalid -kind")
	}
	extents, err := parseDims(*flagDims, e)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewPCG(*flagSeed, 0))

	factors := make([]tensors.LabeledTensor, len(e.operands))
	var memory uint64
	for ii, ix := range e.operands {
		d := must.M1(extents.Dims(ix))
		t, err := tensors.Build(kind, fmt.Sprintf("T%d", ii), d...)
		if err != nil {
			return err
		}
		defer func() { _ = t.Close() }()
		values := make([]float64, t.Numel())
		for jj := range values {
			values[jj] = rng.Float64()*2 - 1
		}
		if err = t.SetFlat(values); err != nil {
			return err
		}
		memory += uint64(t.Numel()) * 8
		factors[ii] = t.WithIndices(ix)
	}
	result, err := tensors.Build(kind, "result", must.M1(extents.Dims(e.output))...)
	if err != nil {
		return err
	}
	defer func() { _ = result.Close() }()
	memory += uint64(result.Numel()) * 8
	product := tensors.Product{Factors: factors}

	var bar *progressbar.ProgressBar
	if *flagRepeat > 1 {
		bar = progressbar.NewOptions(*flagRepeat,
			progressbar.OptionSetDescription("evaluating"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("evals"),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
			progressbar.OptionClearOnFinish())
	}
	start := time.Now()
	for range max(*flagRepeat, 1) {
		if err = result.WithIndices(e.output).Assign(product); err != nil {
			return err
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	elapsed := time.Since(start)
	if bar != nil {
		_ = bar.Finish()
	}
	norm, err := result.Norm(2)
	if err != nil {
		return err
	}

	table := newTable(0, false, lipgloss.Left, lipgloss.Right)
	table.Headers("", "")
	table.Row("kind", kind.String())
	table.Row("operands", fmt.Sprint(len(factors)))
	table.Row("memory", humanize.IBytes(memory))
	table.Row("evaluations", humanize.Comma(int64(max(*flagRepeat, 1))))
	table.Row("time per evaluation", (elapsed / time.Duration(max(*flagRepeat, 1))).String())
	table.Row("result norm", fmt.Sprintf("%.6g", norm))
	if _, err = fmt.Fprintf(w, "%s\n%s\n", titleStyle.Render("Run"), table.Render()); err != nil {
		return err
	}
	if *flagPrint {
		return result.Print(w, true, "", 0)
	}
	return nil
}
