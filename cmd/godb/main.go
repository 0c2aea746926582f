// Command godb is an interactive shell over a rowdb catalog: it parses
// and executes one SQL statement per line against the on-disk heap files
// named in a catalog file, each statement running and committing in its
// own transaction.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/csc560/rowdb/godb"
)

func main() {
	catalogFile := flag.String("catalog", "", "path to a catalog file (one table per line: name (field type, ...))")
	dataDir := flag.String("data", ".", "directory containing the tables' backing files")
	bufferPages := flag.Int("buffer", godb.BufferPoolDefaultPages, "number of pages held in the buffer pool")
	flag.Parse()

	bp, err := godb.NewBufferPool(*bufferPages)
	if err != nil {
		log.Fatalf("creating buffer pool: %v", err)
	}

	c, err := godb.NewCatalog(*catalogFile, bp, *dataDir)
	if err != nil {
		log.Fatalf("loading catalog: %v", err)
	}

	logPath := filepath.Join(*dataDir, "godb.wal")
	lf, err := godb.NewLogFile(logPath, c)
	if err != nil {
		log.Fatalf("opening log file: %v", err)
	}
	if err := bp.Recover(lf); err != nil {
		log.Fatalf("recovering from log: %v", err)
	}

	rl, err := readline.New("godb> ")
	if err != nil {
		log.Fatalf("starting shell: %v", err)
	}
	defer rl.Close()

	fmt.Println("godb -- a teaching relational database. Type \\q to exit, \\dt to list tables.")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			log.Printf("read error: %v", err)
			return
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case line == `\q`:
			return
		case line == `\dt`:
			printTables(c)
			continue
		}

		runStatement(c, bp, line)
	}
}

func runStatement(c *godb.Catalog, bp *godb.BufferPool, sql string) {
	plan, err := godb.Parse(c, sql)
	if err != nil {
		fmt.Printf("parse error: %v\n", err)
		return
	}

	tid := godb.NewTID()
	if err := bp.BeginTransaction(tid); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	it, err := plan.Iterator(tid)
	if err != nil {
		bp.AbortTransaction(tid)
		fmt.Printf("error: %v\n", err)
		return
	}

	desc := plan.Descriptor()
	fmt.Println(desc.HeaderString(true))

	for {
		t, err := it()
		if err != nil {
			bp.AbortTransaction(tid)
			fmt.Printf("error: %v\n", err)
			return
		}
		if t == nil {
			break
		}
		fmt.Println(t.PrettyPrintString())
	}

	bp.CommitTransaction(tid)
}

func printTables(c *godb.Catalog) {
	names := c.TableNames()
	if len(names) == 0 {
		fmt.Println("no tables")
		return
	}
	for _, n := range names {
		fmt.Println(n)
	}
}
