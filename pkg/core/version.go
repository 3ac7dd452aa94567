package core

// Version of the engine. It is recorded in the data store so that documents
// written by a different build are discarded.
const Version = "0.4.0"
