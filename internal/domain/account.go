package domain

// Account is a summoner profile as resolved by the remote service.
type Account struct {
	ID    string
	PUUID string
	Name  string
	Level int
}
