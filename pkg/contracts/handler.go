package contracts

import "github.com/julienschmidt/httprouter"

type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

type composite []Handler

func (c composite) RegisterRoutes(router *httprouter.Router) {
	for _, h := range c {
		h.RegisterRoutes(router)
	}
}

// Compose bundles several handlers into one so they can share a router and
// middleware chain.
func Compose(handlers ...Handler) Handler {
	return composite(handlers)
}
