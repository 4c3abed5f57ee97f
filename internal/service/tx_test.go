package service

import "context"

type testTxRepos struct {
	sources SourceRepositoryInterface
	items   ItemRepositoryInterface
}

func (t *testTxRepos) Sources() SourceRepositoryInterface {
	return t.sources
}

func (t *testTxRepos) Items() ItemRepositoryInterface {
	return t.items
}

type testTxRunner struct {
	repos  TxRepositories
	called int
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called++
	return fn(t.repos)
}
