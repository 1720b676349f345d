// filehub is a TCP file transfer server and client with integrity
// verification, duplicate handling policies and resumable downloads.
package main

import "filehub/cmd"

func main() {
	cmd.Execute()
}
