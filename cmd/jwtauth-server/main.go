// Command jwtauth-server is the reference server: a JSON login endpoint that
// dispatches tokens, a logout endpoint that revokes them and a guarded /me route.
package main

func main() {
	Execute()
}
