// Package bphase is a small phase-driven HTTP server host with error-returning handlers and buffered
// responses.
//
// # Overview
//
// A server is built once from a tree of location [Block]s and a set of [Module]s. Modules declare
// directives, keep a configuration record per location and install handlers into request phases. The
// build runs the same steps for every module:
//
//  1. create a zero record for every location ([LocConfCreator])
//  2. apply the directives found in each block ([Directive])
//  3. merge every record with the one of the enclosing location ([LocConfMerger])
//  4. run the post-configuration hook once ([PostConfigurer])
//
// A minimal example:
//
//	srv, err := bphase.Build(ctx, bphase.Block{
//	    Locations: []bphase.Block{{
//	        Location:   "/hello",
//	        Directives: [][]string{{"hello_world"}, {"hello_world_text", "$arg_name"}},
//	    }},
//	}, bphase.WithModules(helloworld.New()))
//	if err != nil {
//	    return err
//	}
//
//	http.ListenAndServe(":8080", srv)
//
// # Phases
//
// Every request runs through the [Phase]s in order. Post-read and access handlers allow the request by
// returning nil, end it by returning an error, or defer to the next handler with [ErrDeclined]. The content
// handler of the location produces the response; without one the content phase handlers are asked and
// finally a 404 is returned. Log phase handlers run last, after the build's middleware returned, and cannot
// change the response.
//
// # Handler Signature
//
// Handlers differ from standard http.Handlers in three ways:
//
//   - They receive the request context as the first argument
//   - They write to a [ResponseWriter] that buffers output
//   - They return an error that triggers automatic response handling
//
// # Buffered Response Writer
//
// All writes are held in memory until explicitly flushed or until the request was served. When a handler
// returns an error the buffer is reset and an error response is written instead:
//
//   - [*Error] (created with [NewError]): uses the error's code
//   - other errors: logged and converted to 500 Internal Server Error
//
// # Configuration Values
//
// Directive arguments that should depend on the request are compiled into a [ComplexValue]. Variables are
// written as $name or ${name}, e.g. "$http_user_agent on $uri".
package bphase
