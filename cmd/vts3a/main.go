// The main package for the vts3a executable.
package main

func main() {
	Execute()
}
