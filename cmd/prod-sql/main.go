// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command prod-sql displays the fast simulation productions recorded in
// the production database.
package main // import "github.com/AliceO2Group/DelphesO2/cmd/prod-sql"

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/AliceO2Group/DelphesO2/proddb"
	"github.com/google/uuid"
)

func main() {
	log.SetPrefix("prod-sql: ")
	log.SetFlags(0)

	var (
		dsn  = flag.String("db", os.Getenv("O2_PRODDB"), "production database ([mysql:|sqlite:]dsn)")
		prod = flag.String("prod", "", "production ID to inspect")
		mkdb = flag.Bool("init", false, "create the tables of the database")
	)

	flag.Parse()

	if *dsn == "" {
		flag.Usage()
		log.Fatalf("missing production database")
	}

	db, err := proddb.Open(proddb.ParseDSN(*dsn))
	if err != nil {
		log.Fatalf("could not open production db: %+v", err)
	}
	defer db.Close()

	if *mkdb {
		err = db.Init(context.Background())
		if err != nil {
			log.Fatalf("could not create production db: %+v", err)
		}
	}

	err = doQuery(db, *prod, os.Stdout)
	if err != nil {
		log.Fatalf("could not do query: %+v", err)
	}
}

func doQuery(db *proddb.DB, prod string, w io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if prod != "" {
		id, err := uuid.Parse(prod)
		if err != nil {
			return fmt.Errorf("could not parse production ID %q: %w", prod, err)
		}
		return doRuns(ctx, db, id, w)
	}

	prods, err := db.Productions(ctx)
	if err != nil {
		return fmt.Errorf("could not retrieve productions: %w", err)
	}
	log.Printf("productions: %d", len(prods))

	tw := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)
	fmt.Fprintf(tw, "ID\tENTRY\tCONFIG\tHOST\tRUNS\tEVENTS\tSTART\tDURATION\tSTATUS\n")
	for _, p := range prods {
		dur := "-"
		if !p.End.IsZero() {
			dur = p.End.Sub(p.Start).String()
		}
		fmt.Fprintf(tw, "%v\t%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			p.ID, p.Entry, p.Config, p.Host, p.NRuns, p.NEvents,
			p.Start.Format(time.RFC3339), dur, p.Status,
		)
	}
	return tw.Flush()
}

func doRuns(ctx context.Context, db *proddb.DB, id uuid.UUID, w io.Writer) error {
	runs, err := db.Runs(ctx, id)
	if err != nil {
		return fmt.Errorf("could not retrieve runs of %v: %w", id, err)
	}
	log.Printf("runs: %d", len(runs))

	tw := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)
	fmt.Fprintf(tw, "RUN\tSTART\tDURATION\tOK\tISSUES\n")
	for _, run := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%v\t%v\t%d\n",
			run.Number, run.Start.Format(time.RFC3339), run.End.Sub(run.Start),
			run.OK, run.Issues,
		)
	}
	return tw.Flush()
}
