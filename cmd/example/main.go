// Command example is a minimal smoke test of the public API: spawn one
// child to do some arithmetic, then run the same function across a pool
// of the requested size. Flags only control the smoke test's own shape
// (pool size, task count); the public API takes no part in CLI parsing.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-procspawn/procspawn"
	"github.com/go-procspawn/procspawn/pool"
)

func sum(nums []int) int {
	total := 0
	for _, n := range nums {
		total += n
	}
	return total
}

var _ = procspawn.Register(sum)

func main() {
	procspawn.Init()

	fs := flag.NewFlagSet("example", flag.ExitOnError)
	poolSize := fs.Int("pool-size", 3, "number of persistent worker processes")
	taskCount := fs.Int("tasks", 10, "number of calls to submit to the pool")
	fs.Parse(os.Args[1:])

	handle, err := procspawn.Spawn([]int{1, 2, 3, 4, 5}, sum)
	if err != nil {
		log.Fatalf("spawn: %v", err)
	}
	result, err := handle.Join()
	if err != nil {
		log.Fatalf("join: %v", err)
	}
	fmt.Println("spawn result:", result)

	p, err := pool.New(*poolSize)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer p.Shutdown()

	tasks := make([]*pool.Task[int], 0, *taskCount)
	for i := 0; i < *taskCount; i++ {
		task, err := pool.Spawn(p, []int{i, i + 1, i + 2}, sum)
		if err != nil {
			log.Fatalf("pool spawn: %v", err)
		}
		tasks = append(tasks, task)
	}
	for i, task := range tasks {
		v, err := task.Join()
		if err != nil {
			log.Fatalf("pool join %d: %v", i, err)
		}
		fmt.Println("pool result:", v)
	}
}
