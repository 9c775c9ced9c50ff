/*
Package runner drives an interactive conversation against the orchestrator.

The runner reads user messages through a pluggable IOHandler, runs one turn
per message and prints the answers until the conversation reaches a terminal
node or the user leaves. Turns are stored under a session id, so a later run
with the same id resumes where the previous one stopped.

# Key Components

  - Runner: the read, turn, print loop.
  - IOHandler: how messages reach and leave the user.
  - TextHandler: interactive terminal usage, optionally rendering markdown.
  - JSONHandler: JSON Lines for scripts and other programs.

# Usage

	r := runner.NewRunner(
		runner.WithSessionID("user-1"),
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)
	if _, err := r.Run(ctx, engine); err != nil {
		log.Fatal(err)
	}

A Ctrl+C while a turn is running cancels that turn only; the conversation
stays where it was and the user can retry. A Ctrl+C at the prompt ends the
run.
*/
package runner
