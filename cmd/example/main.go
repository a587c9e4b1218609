// Command example is a runnable tour of the reactor package: a counter
// cell, a derived doubled value, an effect that prints on every change,
// and a debounced resource cell simulating a search-as-you-type fetch.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/corefx/reactor"
)

func main() {
	err := reactor.WithRuntime(run)
	if err != nil {
		fmt.Println("error:", err)
	}
}

func run(rt *reactor.Runtime) error {
	count := reactor.NewCellIn(rt, 0)

	doubled := reactor.NewDerivedCellIn(rt, func() int {
		return count.Read() * 2
	})

	unsub := doubled.Watch(func(v int) {
		fmt.Println("doubled is now", v)
	})
	defer unsub.Dispose()

	effect := reactor.NewEffectIn(rt, func() {
		fmt.Println("count =", count.Read())
	})
	defer effect.Dispose()

	for i := 1; i <= 3; i++ {
		count.Set(i)
	}

	search := reactor.NewResourceCellIn(rt, fetchResults, reactor.WithDebounce[string](50*time.Millisecond))
	searchUnsub := search.Watch(func(s reactor.ResourceState[string]) {
		fmt.Println("search:", s.Status, s.Data)
	})
	defer searchUnsub.Dispose()

	search.Fetch()
	search.Fetch()
	search.Fetch()

	time.Sleep(200 * time.Millisecond)
	return nil
}

func fetchResults(ctx context.Context) (string, error) {
	select {
	case <-time.After(20 * time.Millisecond):
		return "3 results", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
