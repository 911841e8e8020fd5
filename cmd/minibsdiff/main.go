// Command minibsdiff is a thin front end over the bsdiff/bspatch/
// multipatch packages (explicitly out of scope for the core per
// spec §1; kept minimal on purpose).
package main

import (
	"fmt"
	"os"

	"github.com/Smart-Mimic/minibsdiff/bsdiff"
	"github.com/Smart-Mimic/minibsdiff/bspatch"
	"github.com/Smart-Mimic/minibsdiff/internal/fileio"
	"github.com/Smart-Mimic/minibsdiff/multipatch"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n"+
		"  %s diff <old> <new> <patch>\n"+
		"  %s patch <old> <patch> <new>\n"+
		"  %s mdiff <container> <old1> <new1> [<old2> <new2> ...]\n"+
		"  %s mpatch <input> <container> <output>\n",
		os.Args[0], os.Args[0], os.Args[0], os.Args[0])
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	var err error
	switch os.Args[1] {
	case "diff":
		err = runDiff(os.Args[2:])
	case "patch":
		err = runPatch(os.Args[2:])
	case "mdiff":
		err = runMultiDiff(os.Args[2:])
	case "mpatch":
		err = runMultiPatch(os.Args[2:])
	default:
		usage()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(1)
	}
}

func runDiff(args []string) error {
	if len(args) != 3 {
		usage()
	}
	oldb, err := fileio.ReadAll(args[0])
	if err != nil {
		return err
	}
	newb, err := fileio.ReadAll(args[1])
	if err != nil {
		return err
	}
	patch, err := bsdiff.Diff(oldb, newb)
	if err != nil {
		return fmt.Errorf("diff: %w", err)
	}
	if err := fileio.WriteAll(args[2], patch); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d bytes)\n", args[2], len(patch))
	return nil
}

func runPatch(args []string) error {
	if len(args) != 3 {
		usage()
	}
	oldb, err := fileio.ReadAll(args[0])
	if err != nil {
		return err
	}
	patch, err := fileio.ReadAll(args[1])
	if err != nil {
		return err
	}
	newSize, err := bspatch.NewSize(patch)
	if err != nil {
		return fmt.Errorf("patch: %w", err)
	}
	newb, err := bspatch.Apply(oldb, patch, newSize)
	if err != nil {
		return fmt.Errorf("patch: %w", err)
	}
	if err := fileio.WriteAll(args[2], newb); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d bytes)\n", args[2], len(newb))
	return nil
}

func runMultiDiff(args []string) error {
	if len(args) < 3 || len(args)%2 != 1 {
		usage()
	}
	containerPath := args[0]
	fileArgs := args[1:]

	var pairs []multipatch.Pair
	for i := 0; i < len(fileArgs); i += 2 {
		oldb, err := fileio.ReadAll(fileArgs[i])
		if err != nil {
			return err
		}
		newb, err := fileio.ReadAll(fileArgs[i+1])
		if err != nil {
			return err
		}
		pairs = append(pairs, multipatch.Pair{Old: oldb, New: newb})
	}

	container, err := multipatch.Create(pairs)
	if err != nil {
		return fmt.Errorf("mdiff: %w", err)
	}
	if err := fileio.WriteAll(containerPath, container); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d bytes, %d patches)\n", containerPath, len(container), len(pairs))
	return nil
}

func runMultiPatch(args []string) error {
	if len(args) != 3 {
		usage()
	}
	input, err := fileio.ReadAll(args[0])
	if err != nil {
		return err
	}
	container, err := fileio.ReadAll(args[1])
	if err != nil {
		return err
	}
	out, err := multipatch.Apply(container, input)
	if err != nil {
		return fmt.Errorf("mpatch: %w", err)
	}
	if err := fileio.WriteAll(args[2], out); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d bytes)\n", args[2], len(out))
	return nil
}
