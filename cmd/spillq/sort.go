package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/tailored-agentic-units/spillq/engine"
	"github.com/tailored-agentic-units/spillq/serializing"
)

type SortCmd struct {
	Input   string `arg:"" optional:"" type:"existingfile" help:"Input file; stdin when omitted."`
	Reverse bool   `name:"reverse" short:"r" help:"Print largest first."`
}

func (cmd *SortCmd) Run(g *Globals) error {
	cfg, err := g.engineConfig()
	if err != nil {
		return err
	}

	e, err := engine.New(cfg, engine.WithObserver(g.observer()))
	if err != nil {
		return err
	}
	defer e.Shutdown(g.ctx)

	in := io.Reader(os.Stdin)
	if cmd.Input != "" {
		f, err := os.Open(cmd.Input)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	var s serializing.PrioritySerializer[float64] = serializing.Float64{}
	if cmd.Reverse {
		s = reversed{}
	}
	q, err := serializing.NewPriorityQueue(e, s)
	if err != nil {
		return err
	}
	defer q.Close()

	if err := cmd.load(g, q, in); err != nil {
		return err
	}
	g.logger.Debug("input loaded",
		"values", q.Size(),
		"spilled_bytes", e.Storage().SpilledBytes(),
	)

	out := bufio.NewWriter(os.Stdout)
	for !q.IsEmpty() {
		if err := g.ctx.Err(); err != nil {
			return err
		}
		v, err := q.Top()
		if err != nil {
			return err
		}
		out.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		out.WriteByte('\n')
		if err := q.Pop(); err != nil {
			return err
		}
	}
	if err := out.Flush(); err != nil {
		return err
	}

	return g.dumpMetrics(e)
}

func (cmd *SortCmd) load(g *Globals, q *serializing.PriorityQueue[float64], in io.Reader) error {
	scanner := bufio.NewScanner(in)
	line := 0
	for scanner.Scan() {
		line++
		if line%65536 == 0 {
			if err := g.ctx.Err(); err != nil {
				return err
			}
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := q.Push(v); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return scanner.Err()
}

// reversed orders by negated value.
type reversed struct {
	serializing.Float64
}

func (r reversed) Serialize(v float64, buf []byte) (float64, error) {
	_, err := r.Float64.Serialize(v, buf)
	return -v, err
}
