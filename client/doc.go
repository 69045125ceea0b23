// Package client supervises the connection to a voice server.
//
// A Supervisor opens one Session at a time through a Transport and decides
// what to do when it ends:
//
//   - certificate verification failed: ask the user to review the
//     certificate, pin its digest on acceptance and retry
//   - the server rejected the username or password: ask for a new one and
//     retry
//   - anything else: reconnect after a delay when the session ended
//     unexpectedly and automatic reconnects are enabled
//
// Everything the Supervisor does runs on a Loop, a single goroutine fed by
// Post. Transport goroutines and prompt replies never touch supervisor
// state directly; they post closures, and closures belonging to an older
// session are discarded.
//
// # Usage
//
//	loop := client.NewLoop()
//	sup := client.NewSupervisor(loop, client.Options{
//	    Transport:     conn,
//	    Trust:         trust,
//	    Prompter:      ui,
//	    AutoReconnect: true,
//	})
//	go loop.Run(ctx)
//
//	addr, err := client.ParseServerURL("mumble://alice@voice.example.org/Lobby")
//	if err != nil {
//	    return err
//	}
//	sup.Connect(ctx, addr)
package client
