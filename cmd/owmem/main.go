// Command owmem inspects and modifies the memory banks of 1-Wire devices on a
// simulated bus whose device images are persisted in a LevelDB store.
package main

func main() {
	Execute()
}
