// Command notesynth serves the score-to-audio API and converts files offline.
package main

func main() {
	Execute()
}
