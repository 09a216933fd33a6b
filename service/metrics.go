package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var listsCoalesced = promauto.NewCounter(prometheus.CounterOpts{
	Name: "postroom_list_posts_coalesced",
	Help: "Number of post listing misses that joined an in-flight repository read",
})

var postsCreated = promauto.NewCounter(prometheus.CounterOpts{
	Name: "postroom_posts_created",
	Help: "Number of posts created",
})

var postsDeleted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "postroom_posts_deleted",
	Help: "Number of posts deleted",
})

var accountsCreated = promauto.NewCounter(prometheus.CounterOpts{
	Name: "postroom_accounts_created",
	Help: "Number of accounts created through signup",
})
