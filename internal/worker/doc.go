// Package worker — хост процесса-потребителя журнала.
//
// # Обзор
//
// Worker запускает потребителя сообщений и вспомогательные фоновые задачи,
// следит за их завершением и сообщает хосту о фатальной ошибке.
//
//	w := worker.New(worker.Config{
//	    Consumer:  consumer,   // *mq.Consumer[domain.PingModel]
//	    Retention: retention,  // опционально
//	    Logger:    logger,
//	})
//
//	if err := w.Start(ctx); err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	select {
//	case <-ctx.Done():
//	case err := <-w.Err():
//	    // исчерпаны попытки подключения или StopOnFailure
//	}
//
// # Масштабирование
//
// Каждый экземпляр держит собственную exclusive-очередь, поэтому
// несколько воркеров на одних routing keys получают копии сообщений.
// Повторная запись одного сообщения отсекается журналом по MessageID.
package worker
