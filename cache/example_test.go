package cache_test

import (
	"fmt"

	"github.com/jonwraymond/entitycache/cache"
)

func ExampleKey_Equal() {
	a := cache.Key{"computers", "list", map[string]any{"platform": "linux", "active": true}}
	b := cache.Key{"computers", "list", map[string]any{"active": true, "platform": "linux"}}

	fmt.Println("Equal:", a.Equal(b))
	fmt.Println(a)
	// Output:
	// Equal: true
	// ["computers" "list" {"active":true,"platform":"linux"}]
}

func ExampleStore_Invalidate() {
	s := cache.NewStore(cache.DefaultPolicy())
	s.Write(cache.Key{"computers", "list"}, []string{"c1"})
	s.Write(cache.Key{"computers", "detail", "c1"}, "c1")
	s.Write(cache.Key{"users", "detail", "u1"}, "u1")

	n := s.Invalidate(cache.Key{"computers"})
	fmt.Println("Invalidated:", n)

	e, _ := s.Read(cache.Key{"users", "detail", "u1"})
	fmt.Println("Users stale:", s.IsStale(e))
	e, _ = s.Read(cache.Key{"computers", "detail", "c1"})
	fmt.Println("Computer stale:", s.IsStale(e), e.Status)
	// Output:
	// Invalidated: 2
	// Users stale: false
	// Computer stale: true idle
}
